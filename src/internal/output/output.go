// Package output renders command results in either a human-readable
// format or JSON. Commands switch on the format once, at the top, and
// write everything through this package so --output json stays clean.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Format is the output format for command results.
type Format string

const (
	FormatDefault Format = "default"
	FormatJSON    Format = "json"
)

var currentFormat = FormatDefault

// SetFormat sets the global output format. An empty string selects the
// default format.
func SetFormat(format string) error {
	switch format {
	case "", string(FormatDefault):
		currentFormat = FormatDefault
	case string(FormatJSON):
		currentFormat = FormatJSON
	default:
		return fmt.Errorf("unsupported output format %q (supported: default, json)", format)
	}
	return nil
}

// GetFormat returns the current output format.
func GetFormat() Format {
	return currentFormat
}

// IsJSON reports whether JSON output is active.
func IsJSON() bool {
	return currentFormat == FormatJSON
}

// PrintJSON writes data to stdout as indented JSON.
func PrintJSON(data interface{}) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}

// PrintDefault runs the human formatter unless JSON output is active.
func PrintDefault(formatter func()) {
	if !IsJSON() {
		formatter()
	}
}

// Print writes data as JSON when JSON output is active, otherwise runs
// the human formatter.
func Print(data interface{}, formatter func()) error {
	if IsJSON() {
		return PrintJSON(data)
	}
	formatter()
	return nil
}

// ANSI escape codes. Human output goes to interactive terminals; JSON
// mode bypasses all of these.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
)

func printfLine(prefix, color, format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s%s%s%s\n", color, prefix, fmt.Sprintf(format, args...), ansiReset)
}

// Header prints a bold title line.
func Header(format string, args ...interface{}) {
	printfLine("", ansiBold, format, args...)
}

// Section prints an icon-prefixed section heading followed by its body.
func Section(icon, format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "\n%s %s%s%s\n", icon, ansiBold, fmt.Sprintf(format, args...), ansiReset)
}

// Step prints one step of a longer operation.
func Step(icon, format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

// Success prints a green check-marked line.
func Success(format string, args ...interface{}) {
	printfLine("✓ ", ansiGreen, format, args...)
}

// Error prints a red cross-marked line.
func Error(format string, args ...interface{}) {
	printfLine("✗ ", ansiRed, format, args...)
}

// Warning prints a yellow warning line.
func Warning(format string, args ...interface{}) {
	printfLine("⚠ ", ansiYellow, format, args...)
}

// Info prints a neutral informational line.
func Info(format string, args ...interface{}) {
	printfLine("", ansiBlue, format, args...)
}

// Item prints an indented list item.
func Item(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  • %s\n", fmt.Sprintf(format, args...))
}

// ItemSuccess prints an indented list item marked successful.
func ItemSuccess(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  %s✓%s %s\n", ansiGreen, ansiReset, fmt.Sprintf(format, args...))
}

// ItemError prints an indented list item marked failed.
func ItemError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  %s✗%s %s\n", ansiRed, ansiReset, fmt.Sprintf(format, args...))
}

// ItemWarning prints an indented list item with a warning mark.
func ItemWarning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  %s⚠%s %s\n", ansiYellow, ansiReset, fmt.Sprintf(format, args...))
}

// Divider prints a horizontal rule.
func Divider() {
	fmt.Fprintf(os.Stdout, "%s%s%s\n", ansiDim, strings.Repeat("─", 48), ansiReset)
}

// Newline prints an empty line.
func Newline() {
	fmt.Fprintln(os.Stdout)
}

// Label prints an aligned "Name: value" pair.
func Label(name, format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "  %s%-14s%s %s\n", ansiDim, name+":", ansiReset, fmt.Sprintf(format, args...))
}

// Highlight returns text styled for emphasis in a larger sentence.
func Highlight(format string, args ...interface{}) string {
	return ansiCyan + fmt.Sprintf(format, args...) + ansiReset
}

// Emphasize returns bold text.
func Emphasize(format string, args ...interface{}) string {
	return ansiBold + fmt.Sprintf(format, args...) + ansiReset
}

// Muted returns dimmed text for secondary detail.
func Muted(format string, args ...interface{}) string {
	return ansiDim + fmt.Sprintf(format, args...) + ansiReset
}

// URL returns a styled clickable URL.
func URL(url string) string {
	return ansiCyan + url + ansiReset
}

// Count returns a styled numeric badge.
func Count(n int) string {
	return ansiBold + fmt.Sprintf("%d", n) + ansiReset
}
