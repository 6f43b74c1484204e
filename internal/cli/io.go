package cli

import (
	"fmt"
	"io"
)

// IO handles command output.
//
// Warnings collect to stderr and turn the exit code into 1 without
// suppressing normal output, so partial results still print with the
// issue flagged.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []string
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// Raw writes bytes to stdout unmodified (file contents for cat).
func (o *IO) Raw(p []byte) {
	_, _ = o.out.Write(p)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Warn records a warning for Finish.
func (o *IO) Warn(a ...any) {
	o.warnings = append(o.warnings, fmt.Sprint(a...))
}

// Finish prints warnings to stderr and returns the exit code:
// 1 if any warnings, 0 otherwise.
func (o *IO) Finish() int {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}
