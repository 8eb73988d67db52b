package inference

import (
	"fmt"
	"strings"

	"schemaforge/internal/domain"
)

const systemPrompt = "You are a data schema inference assistant. Output only valid JSON in the specified format."

func typeList() string {
	names := make([]string, len(domain.ColumnTypes))
	for i, t := range domain.ColumnTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// buildSampleBackedPrompt asks for a full column description for each header,
// grounded in the observed sample values.
func buildSampleBackedPrompt(headers []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("I have a table with these column headers:\n")
	sb.WriteString(strings.Join(headers, ", "))
	sb.WriteString("\n\nHere are some sample rows (values aligned with the headers):\n")
	for _, row := range rows {
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf(`
Return valid JSON describing each column:

{
  "columns": [
    {
      "name": "",
      "type": "",
      "format": "",
      "description": "",
      "nullable": false,
      "constraints": {}
    }
  ]
}

- Use the header text as "name", one entry per header, in the given order.
- "type" must be one of: %s.
- "format" refines the type (a date pattern such as "YYYY-MM-DD", a currency code); omit it when not applicable.
- "description" is one sentence explaining the column's meaning.
- "nullable" is true when empty or missing values appear in the samples.
- "constraints" may contain validation rules justified by the samples:
  minimum/maximum for numeric and date columns, pattern/enum/max_length for
  string columns. Omit constraints you cannot justify.
- Output only valid JSON. Do not include extra text.`, typeList()))
	return sb.String()
}

// buildHeaderOnlyPrompt asks for type and description from header text alone,
// with a self-assessed confidence per column.
func buildHeaderOnlyPrompt(headers []string) string {
	return fmt.Sprintf(`I have a table with these column headers and no sample data:
%s

Return valid JSON describing each column:

{
  "columns": [
    {
      "name": "",
      "type": "",
      "format": "",
      "description": "",
      "nullable": false,
      "constraints": {},
      "confidence": 0.0
    }
  ]
}

- Use the header text as "name", one entry per header, in the given order.
- "type" must be one of: %s. With no samples to check against, prefer "string" unless the header is unambiguous.
- "confidence" is your certainty in the inferred type, between 0.0 and 1.0. An ambiguous header like "Value" warrants a low confidence, and the description should state the ambiguity.
- Include "format" and "constraints" only when you are confident they apply.
- Output only valid JSON. Do not include extra text.`, strings.Join(headers, ", "), typeList())
}
