package display

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TableFormatter builds a fixed-width text table
type TableFormatter interface {
	SetHeaders(headers []string)
	AddRow(row []string)
	SetColumnAlignment(column int, alignment Alignment)
	SetStyle(style TableStyle)
	Render() string
	RenderTo(writer io.Writer)
}

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// TableStyle defines the visual style of a table
type TableStyle struct {
	Name            string
	BorderStyle     BorderStyle
	HeaderSeparator bool
	Padding         int
}

// BorderStyle defines table border characters
type BorderStyle struct {
	Corner     string
	Horizontal string
	Vertical   string
}

var (
	// DefaultTableStyle is a simple ASCII table style
	DefaultTableStyle = TableStyle{
		Name:            "default",
		BorderStyle:     BorderStyle{Corner: "+", Horizontal: "-", Vertical: "|"},
		HeaderSeparator: true,
		Padding:         1,
	}

	// CompactTableStyle has no borders
	CompactTableStyle = TableStyle{
		Name:    "compact",
		Padding: 1,
	}
)

type tableFormatter struct {
	headers     []string
	rows        [][]string
	alignments  map[int]Alignment
	style       TableStyle
	colorSystem ColorSystem
	theme       ColorTheme
}

// NewTableFormatter creates a new table formatter. colorSystem may be nil.
func NewTableFormatter(colorSystem ColorSystem, theme ColorTheme) TableFormatter {
	return &tableFormatter{
		alignments:  make(map[int]Alignment),
		style:       DefaultTableStyle,
		colorSystem: colorSystem,
		theme:       theme,
	}
}

func (tf *tableFormatter) SetHeaders(headers []string) {
	tf.headers = headers
}

func (tf *tableFormatter) AddRow(row []string) {
	tf.rows = append(tf.rows, row)
}

func (tf *tableFormatter) SetColumnAlignment(column int, alignment Alignment) {
	tf.alignments[column] = alignment
}

func (tf *tableFormatter) SetStyle(style TableStyle) {
	tf.style = style
}

// Render returns the formatted table as a string
func (tf *tableFormatter) Render() string {
	if len(tf.headers) == 0 && len(tf.rows) == 0 {
		return ""
	}

	widths := tf.calculateColumnWidths()
	bordered := tf.style.BorderStyle.Horizontal != ""

	var result strings.Builder
	if bordered {
		result.WriteString(tf.renderBorder(widths))
		result.WriteString("\n")
	}

	if len(tf.headers) > 0 {
		result.WriteString(tf.renderRow(tf.headers, widths, true))
		result.WriteString("\n")
		if tf.style.HeaderSeparator && bordered {
			result.WriteString(tf.renderBorder(widths))
			result.WriteString("\n")
		}
	}

	for _, row := range tf.rows {
		result.WriteString(tf.renderRow(row, widths, false))
		result.WriteString("\n")
	}

	if bordered {
		result.WriteString(tf.renderBorder(widths))
		result.WriteString("\n")
	}

	return result.String()
}

// RenderTo renders the table to the specified writer
func (tf *tableFormatter) RenderTo(writer io.Writer) {
	fmt.Fprint(writer, tf.Render())
}

// calculateColumnWidths returns the padded width of every column
func (tf *tableFormatter) calculateColumnWidths() []int {
	numCols := len(tf.headers)
	for _, row := range tf.rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}

	widths := make([]int, numCols)
	for i, header := range tf.headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range tf.rows {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i := range widths {
		widths[i] += tf.style.Padding * 2
	}
	return widths
}

func (tf *tableFormatter) renderBorder(widths []int) string {
	bs := tf.style.BorderStyle

	var result strings.Builder
	result.WriteString(bs.Corner)
	for _, width := range widths {
		result.WriteString(strings.Repeat(bs.Horizontal, width))
		result.WriteString(bs.Corner)
	}
	return result.String()
}

func (tf *tableFormatter) renderRow(row []string, widths []int, isHeader bool) string {
	var result strings.Builder

	result.WriteString(tf.style.BorderStyle.Vertical)
	for i, width := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		result.WriteString(tf.formatCell(cell, width, tf.alignments[i], isHeader))
		result.WriteString(tf.style.BorderStyle.Vertical)
	}

	line := result.String()
	if tf.style.BorderStyle.Vertical == "" {
		line = strings.TrimRight(line, " ")
	}
	return line
}

// formatCell pads content to width; colors are applied after padding so
// escape sequences do not count toward the width
func (tf *tableFormatter) formatCell(content string, width int, alignment Alignment, isHeader bool) string {
	totalPadding := width - tf.style.Padding*2 - utf8.RuneCountInString(content)
	if totalPadding < 0 {
		totalPadding = 0
	}

	if isHeader && tf.colorSystem != nil && tf.colorSystem.IsColorSupported() {
		content = tf.colorSystem.Colorize(content, tf.theme.Primary)
	}

	leftPad, rightPad := 0, totalPadding
	if alignment == AlignRight {
		leftPad, rightPad = totalPadding, 0
	}
	leftPad += tf.style.Padding
	rightPad += tf.style.Padding

	return strings.Repeat(" ", leftPad) + content + strings.Repeat(" ", rightPad)
}

// KeyValueTable renders rows as aligned "key: value" lines indented by two spaces
func KeyValueTable(rows [][2]string) string {
	width := 0
	for _, row := range rows {
		if w := utf8.RuneCountInString(row[0]) + 1; w > width {
			width = w
		}
	}

	var b strings.Builder
	for _, row := range rows {
		key := row[0] + ":"
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(key)+1))
		b.WriteString(row[1])
		b.WriteString("\n")
	}
	return b.String()
}
