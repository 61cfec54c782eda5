package htmlutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode && node.Data == "br" {
		buffer.WriteByte('\n')
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var whitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses whitespace runs and strips non printable characters
// out of the text of a table cell.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespace.ReplaceAllString(s, " ")
	s = removeNonPrintable(s)
	return strings.TrimSpace(s)
}

// Table is a header row plus data rows, every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Records returns each row keyed by column name.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for j, col := range t.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Column returns the index of the named column or -1.
func (t Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ParseTable reads the first <table> out of an html fragment.
//
// The header comes from <thead>, or from the first row if it is made of <th>
// cells. Tables without any header get positional column names.
func ParseTable(fragment string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Table{}, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return Table{}, fmt.Errorf("no table in fragment")
	}

	var columns []string
	table.Find("thead tr").First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		columns = append(columns, CleanText(cell.Text()))
	})

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.ParentsFiltered("thead").Length() > 0 {
			return
		}
		if tr.ParentsFiltered("table").First().Get(0) != table.Get(0) {
			return
		}
		cells := tr.ChildrenFiltered("td, th")
		if cells.Length() == 0 {
			return
		}
		if columns == nil && cells.Filter("td").Length() == 0 {
			cells.Each(func(_ int, cell *goquery.Selection) {
				columns = append(columns, CleanText(cell.Text()))
			})
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			row = append(row, CleanText(cell.Text()))
		})
		rows = append(rows, row)
	})

	width := len(columns)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i := len(columns); i < width; i++ {
		columns = append(columns, fmt.Sprint(i))
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r[:width]
	}

	return Table{Columns: columns, Rows: rows}, nil
}

// Pair is one label/value row of a vertical table.
type Pair struct {
	Label string
	Value string
}

// Transpose turns a vertical label/value table (every row is `label, value`)
// into its pairs, in table order. Rows whose label is empty are ignored, a
// repeated label keeps its first position but takes the later value.
func Transpose(t Table) []Pair {
	var out []Pair
	index := map[string]int{}
	add := func(row []string) {
		if len(row) < 2 {
			return
		}
		label := strings.TrimSpace(strings.TrimSuffix(row[0], ":"))
		if label == "" {
			return
		}
		if i, ok := index[label]; ok {
			out[i].Value = row[1]
			return
		}
		index[label] = len(out)
		out = append(out, Pair{Label: label, Value: row[1]})
	}
	// a two-cell header row is itself a label/value pair in these tables.
	if len(t.Columns) == 2 && t.Columns[0] != "0" {
		add(t.Columns)
	}
	for _, row := range t.Rows {
		add(row)
	}
	return out
}
