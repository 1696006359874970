package wiki

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	keyHeaders  = []string{"symbol", "ticker"}
	nameHeaders = []string{"security", "company"}
)

// Row is one (key, name) pair read from a constituents table.
type Row struct {
	Key  string
	Name string
}

// ParseConstituents walks every <table> of the document and returns the rows of
// the first one whose header has both a key column and a name column.
// Returns nil when no table matches.
func ParseConstituents(r io.Reader) ([]Row, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	for _, table := range findAll(doc, atom.Table) {
		if rows, ok := readTable(table); ok {
			return rows, nil
		}
	}
	return nil, nil
}

func readTable(table *html.Node) ([]Row, bool) {
	keyCol, nameCol := -1, -1
	var rows []Row
	for _, tr := range findAll(table, atom.Tr) {
		cells := cellsOf(tr)
		if len(cells) == 0 {
			continue
		}
		if keyCol < 0 {
			// first non-empty row is the header
			keyCol = columnOf(cells, keyHeaders)
			nameCol = columnOf(cells, nameHeaders)
			if keyCol < 0 || nameCol < 0 {
				return nil, false
			}
			continue
		}
		if keyCol >= len(cells) || nameCol >= len(cells) {
			continue
		}
		rows = append(rows, Row{
			Key:  cells[keyCol],
			Name: cells[nameCol],
		})
	}
	return rows, keyCol >= 0
}

func columnOf(cells []string, names []string) int {
	for i, c := range cells {
		c = strings.ToLower(c)
		for _, n := range names {
			if c == n {
				return i
			}
		}
	}
	return -1
}

// cellsOf returns the trimmed text of the direct <th>/<td> children of tr.
func cellsOf(tr *html.Node) []string {
	var out []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			out = append(out, strings.Join(strings.Fields(textOf(c)), " "))
		}
	}
	return out
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	// footnote markers like [1] are not part of the cell value
	if n.Type == html.ElementNode && n.DataAtom == atom.Sup {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

// findAll returns the descendants of n with the given tag, in document order,
// without descending into nested tables.
func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
				if a == atom.Table {
					continue
				}
			}
			if c.Type == html.ElementNode && c.DataAtom == atom.Table && a != atom.Table {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}
