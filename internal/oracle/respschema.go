package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ResponseSchemaFor derives a JSON Schema document from a Go result type.
// Callers hand the result to GenerateRequest.ResponseSchema so replies are
// validated before they ever reach domain code.
func ResponseSchemaFor(v any) (json.RawMessage, error) {
	r := &invopop.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	s := r.Reflect(v)
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling response schema: %w", err)
	}
	return raw, nil
}

// MustResponseSchemaFor is ResponseSchemaFor for package-level schema vars.
func MustResponseSchemaFor(v any) json.RawMessage {
	raw, err := ResponseSchemaFor(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// validatePayload checks the reply text against the response schema and
// returns the cleaned JSON payload. Markdown code fences around the JSON are
// stripped first; models add them despite instructions not to.
func validatePayload(schemaRaw json.RawMessage, text string) (json.RawMessage, error) {
	cleaned := StripCodeFences(text)

	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaRaw))
	if err != nil {
		return nil, fmt.Errorf("parsing response schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("adding response schema resource: %w", err)
	}
	sch, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("compiling response schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("reply does not conform to response schema: %w", err)
	}

	return json.RawMessage(cleaned), nil
}

// StripCodeFences removes a surrounding markdown code fence from a reply, if
// present, and returns the trimmed body.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "yaml", or empty).
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || !strings.ContainsAny(first, "{}[]") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
