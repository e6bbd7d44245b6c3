package markdown

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

type alignment string

const (
	alignNone   alignment = ""
	alignLeft   alignment = "left"
	alignRight  alignment = "right"
	alignCenter alignment = "center"
)

const minCellWidth = 3

// blockInTable lists elements a GFM cell cannot hold.
const blockInTable = "table, pre, code, blockquote, ul, ol, h1, h2, h3, h4, h5, h6, hr"

var textAlignRe = regexp.MustCompile(`(?i)text-align\s*:\s*(left|right|center)`)

type tableCell struct {
	text    string
	colSpan int
	align   alignment
}

type tableRow struct {
	cells  []tableCell
	header bool
}

// tableModel is a table flattened to rows of cells with column positions
// expanded by colspan.
type tableModel struct {
	rows    []tableRow
	width   int
	aligns  []alignment
	caption string
}

func tableHandler(c *Converter, content string, table *goquery.Selection) (string, bool) {
	if skipTable(table) {
		text := strings.TrimSpace(content)
		if text == "" {
			return "", true
		}
		return blockResult(text), true
	}
	if table.Find(blockInTable).Length() > 0 {
		raw, err := rawTable(table)
		if err != nil {
			return "", false
		}
		return blockResult(raw), true
	}
	m := buildTableModel(c, table)
	if m.width == 0 {
		return blockResult(strings.TrimSpace(content)), true
	}
	return blockResult(renderTable(m)), true
}

// rawTableAttr holds a table's source markup, captured before the converter
// annotates list items and links inside it.
const rawTableAttr = "data-mdspider-raw"

// snapshotRawTables records the markup of every table that will be emitted
// as HTML. All snapshots are taken before any attribute is set, so nested
// tables never leak into an outer table's markup.
func snapshotRawTables(sel *goquery.Selection) {
	tables := sel.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		return t.Find(blockInTable).Length() > 0
	})
	raws := make([]string, tables.Length())
	tables.Each(func(i int, t *goquery.Selection) {
		raws[i], _ = goquery.OuterHtml(t)
	})
	tables.Each(func(i int, t *goquery.Selection) {
		if raws[i] != "" {
			t.SetAttr(rawTableAttr, raws[i])
		}
	})
}

// rawTable returns the table's source markup. Without a snapshot it strips
// the converter's own attributes from a copy.
func rawTable(table *goquery.Selection) (string, error) {
	if raw := table.AttrOr(rawTableAttr, ""); raw != "" {
		return raw, nil
	}
	clone := table.Clone()
	clone.Find("li").RemoveAttr("data-converter-list-prefix")
	clone.Find("a[href]").RemoveAttr("data-index")
	clone.Find("table").RemoveAttr(rawTableAttr)
	return goquery.OuterHtml(clone)
}

// skipTable reports tables too small to be worth a grid: no rows, or one
// row with at most one cell.
func skipTable(table *goquery.Selection) bool {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return true
	}
	return rows.Length() == 1 && rowCells(rows.First()).Length() <= 1
}

func rowCells(tr *goquery.Selection) *goquery.Selection {
	return tr.Children().Filter("td, th")
}

func buildTableModel(c *Converter, table *goquery.Selection) tableModel {
	m := tableModel{}
	if caption := table.Find("caption").First(); caption.Length() > 0 {
		m.caption = strings.TrimSpace(caption.Text())
	}

	hasThead := table.Find("thead").Length() > 0
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		row := tableRow{header: isHeaderRow(tr, i == 0, hasThead)}
		width := 0
		rowCells(tr).Each(func(_ int, td *goquery.Selection) {
			cell := tableCell{
				text:    cleanCell(c.inline(td)),
				colSpan: spanValue(td, "colspan"),
				align:   cellAlignment(td),
			}
			row.cells = append(row.cells, cell)
			width += cell.colSpan
		})
		if width > m.width {
			m.width = width
		}
		m.rows = append(m.rows, row)
	})
	m.aligns = columnAlignments(m)
	return m
}

// isHeaderRow: every cell is a th, and the row is in a thead or is the
// first row of a table without one.
func isHeaderRow(tr *goquery.Selection, first, hasThead bool) bool {
	cells := rowCells(tr)
	if cells.Length() == 0 || cells.Filter("th").Length() != cells.Length() {
		return false
	}
	if goquery.NodeName(tr.Parent()) == "thead" {
		return true
	}
	return first && !hasThead
}

// maxColSpan is the largest colspan browsers honor.
const maxColSpan = 1000

func spanValue(td *goquery.Selection, attr string) int {
	val, err := strconv.Atoi(strings.TrimSpace(td.AttrOr(attr, "1")))
	if err != nil || val <= 1 {
		return 1
	}
	return min(val, maxColSpan)
}

func cellAlignment(td *goquery.Selection) alignment {
	align := strings.ToLower(strings.TrimSpace(td.AttrOr("align", "")))
	if align == "" {
		if m := textAlignRe.FindStringSubmatch(td.AttrOr("style", "")); m != nil {
			align = strings.ToLower(m[1])
		}
	}
	switch alignment(align) {
	case alignLeft, alignRight, alignCenter:
		return alignment(align)
	}
	return alignNone
}

// columnAlignments takes a majority vote per column over the cells that
// start in it. Ties and columns without any signal get alignNone.
func columnAlignments(m tableModel) []alignment {
	votes := make([]map[alignment]int, m.width)
	for i := range votes {
		votes[i] = map[alignment]int{}
	}
	for _, row := range m.rows {
		col := 0
		for _, cell := range row.cells {
			if cell.align != alignNone {
				votes[col][cell.align]++
			}
			col += cell.colSpan
		}
	}

	aligns := make([]alignment, m.width)
	for i, v := range votes {
		best, bestN, tied := alignNone, 0, false
		for _, a := range []alignment{alignLeft, alignRight, alignCenter} {
			switch n := v[a]; {
			case n > bestN:
				best, bestN, tied = a, n, false
			case n == bestN && n > 0:
				tied = true
			}
		}
		if !tied {
			aligns[i] = best
		}
	}
	return aligns
}

func alignmentMarker(a alignment) string {
	switch a {
	case alignLeft:
		return ":---"
	case alignRight:
		return "---:"
	case alignCenter:
		return ":---:"
	default:
		return "---"
	}
}

func renderTable(m tableModel) string {
	var b strings.Builder
	if m.caption != "" {
		b.WriteString(m.caption)
		b.WriteString("\n\n")
	}

	rows := m.rows
	if len(rows) > 0 && rows[0].header {
		writeRow(&b, rows[0], m.width)
		writeSeparator(&b, m.aligns)
		rows = rows[1:]
	} else {
		writeBlankHeader(&b, m.width)
		writeSeparator(&b, m.aligns)
	}
	for _, row := range rows {
		writeRow(&b, row, m.width)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeRow(b *strings.Builder, row tableRow, width int) {
	cols := make([]string, 0, width)
	for _, cell := range row.cells {
		cols = append(cols, padCell(cell.text))
		for i := 1; i < cell.colSpan; i++ {
			cols = append(cols, padCell(""))
		}
	}
	for len(cols) < width {
		cols = append(cols, padCell(""))
	}
	b.WriteString("|")
	for _, col := range cols {
		b.WriteString(" ")
		b.WriteString(col)
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func writeBlankHeader(b *strings.Builder, width int) {
	b.WriteString("|")
	for i := 0; i < width; i++ {
		b.WriteString(strings.Repeat(" ", minCellWidth))
		b.WriteString("|")
	}
	b.WriteString("\n")
}

func writeSeparator(b *strings.Builder, aligns []alignment) {
	b.WriteString("|")
	for _, a := range aligns {
		b.WriteString(alignmentMarker(a))
		b.WriteString("|")
	}
	b.WriteString("\n")
}

func padCell(text string) string {
	if n := utf8.RuneCountInString(text); n < minCellWidth {
		return text + strings.Repeat(" ", minCellWidth-n)
	}
	return text
}

func cleanCell(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	return escapePipes(strings.TrimSpace(text))
}

// escapePipes escapes pipes the converter has not already escaped.
func escapePipes(text string) string {
	if !strings.Contains(text, "|") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 4)
	escaped := false
	for _, r := range text {
		if r == '|' && !escaped {
			b.WriteByte('\\')
		}
		escaped = r == '\\' && !escaped
		b.WriteRune(r)
	}
	return b.String()
}
