package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nifty-advisor/internal/models"
)

// Output renders command results as coloured text, JSON or YAML.
type Output struct {
	writer   io.Writer
	jsonMode bool
	noColor  bool
}

// NewOutput creates an Output for cmd. Colour is disabled in JSON mode and
// when stdout is not a terminal.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:   cmd.OutOrStdout(),
		jsonMode: jsonMode,
		noColor:  jsonMode || color.NoColor || cmd.OutOrStdout() != os.Stdout,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// DisableColor turns colour off regardless of the terminal.
func (o *Output) DisableColor() {
	o.noColor = true
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAML outputs data as YAML.
func (o *Output) YAML(data interface{}) error {
	encoder := yaml.NewEncoder(o.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a line in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(color.FgGreen, format, args...)
}

// Error prints a line in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(color.FgRed, format, args...)
}

// Warning prints a line in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(color.FgYellow, format, args...)
}

// Info prints a line in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(color.FgCyan, format, args...)
}

// Bold prints a bold line.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(color.Bold, format, args...)
}

// Dim prints a faint line.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(color.Faint, format, args...)
}

func (o *Output) line(attr color.Attribute, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(fmt.Sprintf(format, args...), attr))
}

func (o *Output) paint(text string, attrs ...color.Attribute) string {
	if o.noColor {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Green returns green text.
func (o *Output) Green(text string) string { return o.paint(text, color.FgGreen) }

// Red returns red text.
func (o *Output) Red(text string) string { return o.paint(text, color.FgRed) }

// Yellow returns yellow text.
func (o *Output) Yellow(text string) string { return o.paint(text, color.FgYellow) }

// BoldText returns bold text.
func (o *Output) BoldText(text string) string { return o.paint(text, color.Bold) }

// DimText returns faint text.
func (o *Output) DimText(text string) string { return o.paint(text, color.Faint) }

// Bias colours a market bias.
func (o *Output) Bias(b models.Bias) string {
	switch b {
	case models.BiasBullish:
		return o.paint(string(b), color.FgGreen, color.Bold)
	case models.BiasBearish:
		return o.paint(string(b), color.FgRed, color.Bold)
	case models.BiasSideways:
		return o.Yellow(string(b))
	}
	return o.DimText(string(b))
}

// Category colours a score category.
func (o *Output) Category(c models.ScoreCategory) string {
	switch c {
	case models.CategoryStrongBullish, models.CategoryMildBullish:
		return o.Green(string(c))
	case models.CategoryStrongBearish, models.CategoryMildBearish:
		return o.Red(string(c))
	}
	return o.Yellow(string(c))
}

// Risk colours a risk level.
func (o *Output) Risk(r models.RiskLevel) string {
	switch r {
	case models.RiskLow:
		return o.Green(string(r))
	case models.RiskMedium:
		return o.Yellow(string(r))
	}
	return o.paint(string(r), color.FgRed, color.Bold)
}

// Severity tags a warning line.
func (o *Output) Severity(s models.Severity) string {
	if s == models.SeverityBlocking {
		return o.paint("[BLOCKING]", color.FgRed, color.Bold)
	}
	return o.Yellow("[WARNING]")
}

// PnL colours an amount by sign.
func (o *Output) PnL(v float64, text string) string {
	switch {
	case v > 0:
		return o.Green(text)
	case v < 0:
		return o.Red(text)
	}
	return text
}

// Table is a plain aligned table.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table. Cells are padded on their visible width so
// coloured cells still align.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	t.output.Println(t.output.DimText(strings.Join(sep, "  ")))
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, header bool) {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", widths[i]-visibleLen(cell))
		if header {
			padded = t.output.BoldText(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

// visibleLen is the rune count of s with ANSI escape sequences removed.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			n++
		}
	}
	return n
}
