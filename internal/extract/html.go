// Package extract turns HTML pages and CSV files into normalized tables and
// picks the main table when a page contains several.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"schemaforge/internal/domain"
	"schemaforge/internal/port"
)

// HTMLSource extracts tables from an HTML document fetched from a URL or
// read from a file.
type HTMLSource struct {
	url        string
	path       string
	sampleRows int
	client     *http.Client
}

// NewHTMLSourceFromURL creates a source that fetches the page over HTTP.
func NewHTMLSourceFromURL(url string, sampleRows int, timeout time.Duration) *HTMLSource {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTMLSource{
		url:        url,
		sampleRows: defaultRows(sampleRows),
		client:     &http.Client{Timeout: timeout},
	}
}

// NewHTMLSourceFromFile creates a source that reads a local HTML file.
func NewHTMLSourceFromFile(path string, sampleRows int) *HTMLSource {
	return &HTMLSource{path: path, sampleRows: defaultRows(sampleRows)}
}

func defaultRows(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}

// Tables implements port.TableSource.
func (s *HTMLSource) Tables(ctx context.Context) ([]port.TableCandidate, error) {
	var reader io.ReadCloser
	var source string

	switch {
	case s.url != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", s.url, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetching %s: status %d", s.url, resp.StatusCode)
		}
		reader = resp.Body
		source = s.url
	default:
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", s.path, err)
		}
		reader = f
		source = s.path
	}
	defer func() { _ = reader.Close() }()

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var candidates []port.TableCandidate
	doc.Find("table").Each(func(i int, sel *goquery.Selection) {
		table := s.extractTable(sel)
		if table == nil {
			return
		}
		caption := tableCaption(sel)
		table.Metadata = map[string]string{
			"source":      source,
			"source_kind": sourceKindFor(s),
			"table_index": strconv.Itoa(i),
			"row_count":   strconv.Itoa(len(table.SampleRows)),
		}
		if caption != "" {
			table.Metadata["caption"] = caption
		}
		candidates = append(candidates, port.TableCandidate{
			Index:   i,
			Caption: caption,
			Table:   *table,
		})
	})

	if len(candidates) == 0 {
		return nil, domain.ErrNoTablesFound
	}
	return candidates, nil
}

func sourceKindFor(s *HTMLSource) string {
	if s.url != "" {
		return string(domain.SourceURL)
	}
	return string(domain.SourceFile)
}

// extractTable pulls headers and up to sampleRows data rows out of one
// <table> element. Rows are padded or truncated to the header width so the
// table invariant holds at the boundary. Returns nil for header-less tables.
func (s *HTMLSource) extractTable(sel *goquery.Selection) *domain.Table {
	headers := cellTexts(sel.Find("thead tr").First().Find("th, td"))
	if len(headers) == 0 {
		headers = cellTexts(sel.Find("tr").First().Find("th"))
	}

	rows := sel.Find("tr")
	startIndex := 0
	if len(headers) == 0 && rows.Length() > 0 {
		// No thead and no th cells: treat the first row as the header row.
		headers = cellTexts(rows.First().Find("td, th"))
		startIndex = 1
	} else if len(headers) > 0 {
		startIndex = 1
	}

	if len(headers) == 0 {
		return nil
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var sampleRows [][]string
	rows.Each(func(i int, row *goquery.Selection) {
		if i < startIndex || len(sampleRows) >= s.sampleRows {
			return
		}
		cells := cellTexts(row.Find("td, th"))
		if !anyNonEmpty(cells) {
			return
		}
		sampleRows = append(sampleRows, fitWidth(cells, len(headers)))
	})

	return &domain.Table{Headers: headers, SampleRows: sampleRows}
}

// tableCaption prefers the <caption> element, then the nearest preceding
// heading, matching how pages label their tables in practice.
func tableCaption(sel *goquery.Selection) string {
	if caption := strings.TrimSpace(sel.Find("caption").First().Text()); caption != "" {
		return caption
	}
	for _, tag := range []string{"h1", "h2", "h3"} {
		if heading := strings.TrimSpace(sel.PrevAllFiltered(tag).First().Text()); heading != "" {
			return heading
		}
	}
	return ""
}

func cellTexts(cells *goquery.Selection) []string {
	var out []string
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}

func anyNonEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// fitWidth pads or truncates a row to the header width.
func fitWidth(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
