// Package render writes report sections as text tables, Phabricator remarkup, CSV or JSON.
package render

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/rajindersingh041/sidebar-qa/internal/crosstab"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatRemarkup Format = "remarkup"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatRemarkup, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Section is the rendered output of one report step. Err is set when the step failed;
// Table is nil in that case.
type Section struct {
	StepID      string
	Title       string
	Description string
	Window      string
	Table       *crosstab.Table
	Err         error
}

// Renderer writes sections to w in one format. JSON output is buffered until Flush.
type Renderer struct {
	w      io.Writer
	format Format
	chart  bool
	json   []jsonSection
}

func New(w io.Writer, format Format, chart bool) *Renderer {
	return &Renderer{w: w, format: format, chart: chart}
}

// Section renders one step.
func (r *Renderer) Section(s Section) error {
	switch r.format {
	case FormatJSON:
		r.json = append(r.json, toJSON(s))
		return nil
	case FormatCSV:
		return writeCSV(r.w, s)
	case FormatRemarkup:
		if err := writeRemarkup(r.w, s); err != nil {
			return err
		}
	default:
		if err := writeText(r.w, s); err != nil {
			return err
		}
	}
	if r.chart && s.Table != nil {
		return writeChart(r.w, s.Table)
	}
	return nil
}

// Flush writes any buffered output.
func (r *Renderer) Flush() error {
	if r.format != FormatJSON {
		return nil
	}
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	sections := r.json
	if sections == nil {
		sections = []jsonSection{}
	}
	r.json = nil
	return enc.Encode(sections)
}

// Headers returns the index dimension names followed by the table's columns.
func Headers(t *crosstab.Table) []string {
	out := make([]string, 0, len(t.Index)+len(t.Columns))
	for _, d := range t.Index {
		out = append(out, string(d))
	}
	return append(out, t.Columns...)
}

// Cells returns row i as strings; absent cells are empty, counts use thousands separators
// when pretty is set.
func Cells(t *crosstab.Table, i int, pretty bool) []string {
	row := t.Rows[i]
	out := append([]string{}, row.Key...)
	for _, c := range t.Columns {
		n, ok := row.Cells[c]
		switch {
		case !ok:
			out = append(out, "")
		case pretty:
			out = append(out, humanize.Comma(n))
		default:
			out = append(out, fmt.Sprint(n))
		}
	}
	return out
}

func writeText(w io.Writer, s Section) error {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(heading(s)))
	b.WriteString("\n")
	if s.Description != "" {
		b.WriteString(s.Description + "\n")
	}
	if s.Err != nil {
		fmt.Fprintf(&b, "ERROR: %v\n\n", s.Err)
		_, err := io.WriteString(w, b.String())
		return err
	}
	t := s.Table
	if t.Column != "" {
		fmt.Fprintf(&b, "columns: %s\n", t.Column)
	}
	if len(t.Rows) == 0 {
		b.WriteString("(no events)\n\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	rows := make([][]string, len(t.Rows))
	for i := range t.Rows {
		rows[i] = Cells(t, i, true)
	}
	keyCols := len(t.Index)
	right := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	left := lipgloss.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(Headers(t)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col >= keyCols && row != table.HeaderRow {
				return right
			}
			return left
		})
	b.WriteString(tbl.String())
	b.WriteString("\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func heading(s Section) string {
	title := s.Title
	if title == "" {
		title = s.StepID
	}
	if s.Window != "" {
		return fmt.Sprintf("%s [%s] (%s)", title, s.StepID, s.Window)
	}
	return fmt.Sprintf("%s [%s]", title, s.StepID)
}

// writeRemarkup renders a Phabricator remarkup table, ready to paste into a task.
func writeRemarkup(w io.Writer, s Section) error {
	var b strings.Builder
	fmt.Fprintf(&b, "==== %s ====\n", heading(s))
	if s.Description != "" {
		b.WriteString(s.Description + "\n")
	}
	b.WriteString("\n")
	if s.Err != nil {
		fmt.Fprintf(&b, "(WARNING) step failed: %v\n\n", s.Err)
		_, err := io.WriteString(w, b.String())
		return err
	}
	t := s.Table
	if len(t.Rows) == 0 {
		b.WriteString("//No events.//\n\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	headers := Headers(t)
	b.WriteString(remarkupRow(headers))
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "-----"
	}
	b.WriteString(remarkupRow(seps))
	for i := range t.Rows {
		b.WriteString(remarkupRow(Cells(t, i, true)))
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func remarkupRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", "/")
	}
	return "| " + strings.Join(escaped, " | ") + " |\n"
}

// writeCSV writes one block per section: a header row led by "step", the data rows,
// then a blank line.
func writeCSV(w io.Writer, s Section) error {
	cw := csv.NewWriter(w)
	if s.Err != nil {
		cw.Write([]string{"step", "error"})
		cw.Write([]string{s.StepID, s.Err.Error()})
	} else {
		cw.Write(append([]string{"step"}, Headers(s.Table)...))
		for i := range s.Table.Rows {
			cw.Write(append([]string{s.StepID}, Cells(s.Table, i, false)...))
		}
	}
	cw.Write(nil)
	cw.Flush()
	return cw.Error()
}

// writeChart draws one bar per row, scaled to the largest row total.
func writeChart(w io.Writer, t *crosstab.Table) error {
	if len(t.Rows) == 0 {
		return nil
	}
	totals := t.Totals()
	labels := make([]string, len(t.Rows))
	width, maxTotal := 0, int64(0)
	for i, r := range t.Rows {
		labels[i] = strings.Join(r.Key, " / ")
		if w := lipgloss.Width(labels[i]); w > width {
			width = w
		}
		if totals[i] > maxTotal {
			maxTotal = totals[i]
		}
	}

	var b strings.Builder
	for i, label := range labels {
		bar := 0
		if maxTotal > 0 {
			bar = int(totals[i] * 40 / maxTotal)
		}
		if bar < 1 && totals[i] > 0 {
			bar = 1
		}
		pad := strings.Repeat(" ", width-lipgloss.Width(label))
		fmt.Fprintf(&b, "  %s%s %10s  %s\n", label, pad, humanize.Comma(totals[i]), strings.Repeat("#", bar))
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonSection struct {
	Step        string          `json:"step"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Window      string          `json:"window,omitempty"`
	Table       *crosstab.Table `json:"table,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func toJSON(s Section) jsonSection {
	js := jsonSection{
		Step:        s.StepID,
		Title:       s.Title,
		Description: s.Description,
		Window:      s.Window,
		Table:       s.Table,
	}
	if s.Err != nil {
		js.Error = s.Err.Error()
		js.Table = nil
	}
	return js
}
