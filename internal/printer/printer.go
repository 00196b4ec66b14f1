package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects user-facing output. Nil writers restore the process
// streams. Returns a function that restores the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prevOut, prevErr := stdout, stderr
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut
	return func() {
		mu.Lock()
		defer mu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

func writers() (io.Writer, io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	return stdout, stderr
}

// Stdout returns the writer used for regular output.
func Stdout() io.Writer {
	out, _ := writers()
	return out
}

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	out, _ := writers()
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Fprintf(out, "✓ %s", msg)
	} else {
		green.Fprint(out, msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	out, _ := writers()
	fmt.Fprintf(out, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	out, _ := writers()
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Fprintf(out, "⚠️  %s", msg)
	} else {
		yellow.Fprint(out, msg)
	}
}

// Field prints an aligned "label: value" line with the label in bold.
func Field(label string, value string) {
	out, _ := writers()
	bold.Fprintf(out, "  %-14s", label+":")
	fmt.Fprintf(out, " %s\n", value)
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	_, errOut := writers()

	red.Fprintf(errOut, "%s\n\n", title)
	fmt.Fprintf(errOut, "%s\n", explanation)
	printSuggestions(errOut, suggestions)

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// ErrorWithContext creates a formatted error with context details
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	_, errOut := writers()

	red.Fprintf(errOut, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(errOut, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(errOut, "\n")
		for _, key := range keys {
			fmt.Fprintf(errOut, "  %s: %s\n", key, context[key])
		}
	}

	printSuggestions(errOut, suggestions)

	return fmt.Errorf("%s", title)
}

func printSuggestions(w io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintf(w, "\n")
	if len(suggestions) == 1 {
		fmt.Fprintf(w, "%s\n", suggestions[0])
		return
	}
	fmt.Fprintf(w, "Either:\n")
	for i, suggestion := range suggestions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
	}
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	out, _ := writers()
	cyan.Fprintf(out, "→ %s", fmt.Sprintf(format, a...))
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	out, _ := writers()
	fmt.Fprintln(out, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	out, _ := writers()
	fmt.Fprintf(out, format, a...)
}
