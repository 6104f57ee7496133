package ui

import (
	"fmt"
	"io"
	"os"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════════════════╗
    ║ ██╗ ██████╗  ██████╗██████╗  █████╗ ██╗    ██╗██╗     ███████╗██████╗ ║
    ║ ██║██╔════╝ ██╔════╝██╔══██╗██╔══██╗██║    ██║██║     ██╔════╝██╔══██╗║
    ║ ██║██║  ███╗██║     ██████╔╝███████║██║ █╗ ██║██║     █████╗  ██████╔╝║
    ║ ██║██║   ██║██║     ██╔══██╗██╔══██║██║███╗██║██║     ██╔══╝  ██╔══██╗║
    ║ ██║╚██████╔╝╚██████╗██║  ██║██║  ██║╚███╔███╔╝███████╗███████╗██║  ██║║
    ║ ╚═╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚══╝╚══╝ ╚══════╝╚══════╝╚═╝  ╚═╝║
    ║               PROFILE FEED COLLECTOR                                  ║
    ╚═══════════════════════════════════════════════════════════════════╝
`

// Output is where the print helpers write
var Output io.Writer = os.Stdout

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorEnabled is read by every color function. Set it before printing starts.
var colorEnabled = os.Getenv("NO_COLOR") == ""

// SetColor turns ANSI colors on or off
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprint(Output, Cyan(ASCIILogo))
}

// PrintError prints an error message in red, with an optional cause
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	fmt.Fprintln(Output, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow, with an optional cause
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	fmt.Fprintln(Output, Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}
