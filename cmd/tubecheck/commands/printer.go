package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// printError prints err in red and returns it for cobra
func printError(w io.Writer, err error) error {
	red.Fprintf(w, "Error: %v\n", err)
	return err
}

// printHeader prints an entity heading such as a tube name or job key
func printHeader(w io.Writer, format string, a ...any) {
	cyan.Fprintf(w, format+"\n", a...)
}

// printSummary prints the closing count of a listing
func printSummary(w io.Writer, format string, a ...any) {
	faint.Fprintf(w, format+"\n", a...)
}

// printOutcome prints the result of a delete
func printOutcome(w io.Writer, deleted bool, key string) {
	if deleted {
		green.Fprintf(w, "deleted %s\n", key)
		return
	}
	yellow.Fprintf(w, "refused %s\n", key)
}

func printLine(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, format+"\n", a...)
}
