package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display shows a formatted warning, in yellow on terminals
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		b.WriteString("    ")
		if len(w.Files) == 1 {
			b.WriteString("Affected file:\n")
		} else {
			b.WriteString("Affected files:\n")
		}

		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	fmt.Fprint(out, paint(out, color.FgYellow, b.String()))
}

// Pass prints a green check line.
func Pass(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", paint(out, color.FgGreen, "✓"), fmt.Sprintf(format, args...))
}

// Fail prints a red cross line.
func Fail(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", paint(out, color.FgRed, "✗"), fmt.Sprintf(format, args...))
}

// paint colors s when out is a terminal and NO_COLOR is unset.
func paint(out io.Writer, attr color.Attribute, s string) string {
	if !colorEnabled(out) {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func colorEnabled(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok || f == nil || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
