// internal/output/format.go
package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Visual separator constants for error output formatting.
const (
	// SeparatorWidth is the width of separator lines.
	SeparatorWidth = 60

	// SeparatorChar is the character used for separator lines.
	SeparatorChar = "─"
)

// Separator returns a separator line of the default width.
func Separator() string {
	return strings.Repeat(SeparatorChar, SeparatorWidth)
}

// RedSeparator returns a red separator line for errors.
func RedSeparator() string {
	return color.New(color.FgRed).Sprint(Separator())
}

// PrintErrorWithSuggestion prints err framed by separators, followed by a hint when one is known.
func (l *Logger) PrintErrorWithSuggestion(err error, suggestion string) {
	if err == nil {
		return
	}
	if l.jsonMode {
		fmt.Fprintf(l.errOut, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(l.errOut, RedSeparator())
	l.Error("%v", err)
	if suggestion != "" {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(l.errOut, "Hint: %s\n", suggestion)
	}
	fmt.Fprintln(l.errOut, RedSeparator())
}

// ShortHash abbreviates a long hex identifier for display.
func ShortHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:8] + "…" + h[len(h)-8:]
}
