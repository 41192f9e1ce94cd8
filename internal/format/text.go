package format

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

const maxNameWidth = 60

var (
	cPrimary = lipgloss.Color("63")
	cAccent  = lipgloss.Color("205")
	cMuted   = lipgloss.Color("244")
)

type textStyles struct {
	key   lipgloss.Style
	title lipgloss.Style
	muted lipgloss.Style
}

// newTextStyles binds the palette to w's color profile. NO_COLOR forces plain output.
func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	if termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}
	return textStyles{
		key:   r.NewStyle().Bold(true).Foreground(cPrimary),
		title: r.NewStyle().Bold(true).Foreground(cAccent),
		muted: r.NewStyle().Foreground(cMuted),
	}
}

// WriteText renders v for a terminal. Objects become "key: value" lines, task-shaped objects
// become numbered entries, and the {"data": ...} envelope is unwrapped.
func WriteText(w io.Writer, v any) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	if m, ok := x.(map[string]any); ok && len(m) == 1 {
		if d, ok := m["data"]; ok {
			x = d
		}
	}
	var b strings.Builder
	newTextStyles(w).render(&b, x, 0)
	out := strings.TrimRight(b.String(), "\n")
	_, err = fmt.Fprintln(w, out)
	return err
}

func (st textStyles) render(b *strings.Builder, x any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := x.(type) {
	case map[string]any:
		for _, k := range sortedKeys(v) {
			val := v[k]
			if isScalar(val) {
				fmt.Fprintf(b, "%s%s %s\n", indent, st.key.Render(k+":"), st.scalar(val))
				continue
			}
			fmt.Fprintf(b, "%s%s\n", indent, st.key.Render(k+":"))
			st.render(b, val, depth+1)
		}
	case []any:
		if len(v) == 0 {
			fmt.Fprintf(b, "%s%s\n", indent, st.muted.Render("(empty)"))
			return
		}
		for i, item := range v {
			if t, ok := item.(map[string]any); ok && isTask(t) {
				fmt.Fprintf(b, "%s%d. %s\n", indent, i+1, st.taskLine(t))
				continue
			}
			if isScalar(item) {
				fmt.Fprintf(b, "%s- %s\n", indent, st.scalar(item))
				continue
			}
			fmt.Fprintf(b, "%s-\n", indent)
			st.render(b, item, depth+1)
		}
	default:
		fmt.Fprintf(b, "%s%s\n", indent, st.scalar(v))
	}
}

func isTask(m map[string]any) bool {
	_, hasName := m["name"]
	_, hasHours := m["complexityHours"]
	return hasName && hasHours
}

func (st textStyles) taskLine(m map[string]any) string {
	name, _ := m["name"].(string)
	if strings.TrimSpace(name) == "" {
		name = "(untitled)"
	}
	name = ansi.Truncate(name, maxNameWidth, "…")
	parts := []string{st.scalar(m["complexityHours"]) + "h"}
	if d, _ := m["deadline"].(string); d != "" {
		parts = append(parts, "due "+d)
	}
	line := st.title.Render(name) + " " + st.muted.Render("("+strings.Join(parts, ", ")+")")
	if id, _ := m["id"].(string); id != "" {
		line += " " + st.muted.Render("#"+id)
	}
	return line
}

func isScalar(x any) bool {
	switch x.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

func (st textStyles) scalar(x any) string {
	switch v := x.(type) {
	case nil:
		return st.muted.Render("-")
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
