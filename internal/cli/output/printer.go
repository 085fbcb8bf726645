package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled command output
type Printer struct {
	w       io.Writer
	key     lipgloss.Style
	heading lipgloss.Style
	warn    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	status  map[string]lipgloss.Style
}

// NewPrinter creates a printer for w. Styling is dropped automatically
// when w is not a terminal.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)

	cyan := r.NewStyle().Foreground(lipgloss.Color("6"))
	return &Printer{
		w:       w,
		key:     r.NewStyle().Bold(true),
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		status: map[string]lipgloss.Style{
			"queued":      cyan,
			"waiting":     cyan,
			"running":     cyan,
			"in_progress": cyan,
			"success":     r.NewStyle().Foreground(lipgloss.Color("2")),
			"fail":        r.NewStyle().Foreground(lipgloss.Color("3")),
			"failed":      r.NewStyle().Foreground(lipgloss.Color("3")),
			"error":       r.NewStyle().Foreground(lipgloss.Color("1")),
		},
	}
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Println writes a line
func (p *Printer) Println(a ...interface{}) {
	fmt.Fprintln(p.w, a...)
}

// Printf writes formatted text
func (p *Printer) Printf(format string, a ...interface{}) {
	fmt.Fprintf(p.w, format, a...)
}

// Heading writes a blank line and a "# title" section heading
func (p *Printer) Heading(title string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.heading.Render("# "+title))
}

// Warn writes a highlighted notice
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.w, p.warn.Render(msg))
}

// Success writes a success message
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, p.success.Render(msg))
}

// Failure writes a failure message
func (p *Printer) Failure(msg string) {
	fmt.Fprintln(p.w, p.failure.Render(msg))
}

// ColorStatus colours line according to a build status
func (p *Printer) ColorStatus(status, line string) string {
	if line == "" {
		line = status
	}
	style, ok := p.status[status]
	if !ok {
		return line
	}
	return style.Render(line)
}

// Recursive dumps v as indented "key: value" lines. Structs are rendered
// through their JSON form; map keys are sorted.
func (p *Printer) Recursive(v interface{}) error {
	m, err := toGeneric(v)
	if err != nil {
		return err
	}
	p.render(m, 0)
	return nil
}

func (p *Printer) render(v interface{}, indent int) {
	pad := strings.Repeat(" ", indent)

	obj, ok := v.(map[string]interface{})
	if !ok {
		fmt.Fprintf(p.w, "%s%s\n", pad, scalar(v))
		return
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := p.key.Render(k + ":")
		switch val := obj[k].(type) {
		case map[string]interface{}:
			fmt.Fprintf(p.w, "%s%s\n", pad, key)
			p.render(val, indent+2)
		case []interface{}:
			if !hasObjects(val) {
				fmt.Fprintf(p.w, "%s%s %s\n", pad, key, scalar(val))
				continue
			}
			fmt.Fprintf(p.w, "%s%s\n", pad, key)
			for _, item := range val {
				fmt.Fprintf(p.w, "%s  -\n", pad)
				p.render(item, indent+4)
			}
		default:
			fmt.Fprintf(p.w, "%s%s %s\n", pad, key, scalar(val))
		}
	}
}

func hasObjects(list []interface{}) bool {
	for _, item := range list {
		if _, ok := item.(map[string]interface{}); ok {
			return true
		}
	}
	return false
}

func scalar(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, scalar(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// toGeneric converts structs into JSON-shaped maps
func toGeneric(v interface{}) (interface{}, error) {
	switch v.(type) {
	case map[string]interface{}, nil:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return out, nil
}
