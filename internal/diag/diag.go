// Package diag implements checker diagnostic output: findings written one
// per line to stderr in the exact format
// `<file>:<line> <function>(<return_index>) <severity>: <message>`, with
// the severity token colorized via github.com/fatih/color.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"smatchgo/internal/ast"
)

// Severity is one of the three diagnostic severities.
type Severity string

const (
	Info  Severity = "info"
	Warn  Severity = "warn"
	Error Severity = "error"
)

func (s Severity) color() *color.Color {
	switch s {
	case Error:
		return color.New(color.FgRed, color.Bold)
	case Warn:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}

// Diagnostic is one checker finding.
type Diagnostic struct {
	Pos         ast.Position
	Function    string
	ReturnIndex int // -1 when not inside a specific return-site context
	Severity    Severity
	Message     string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d %s(%d) %s: %s",
		d.Pos.File, d.Pos.Line, d.Function, d.ReturnIndex, d.Severity, d.Message)
}

// Reporter writes diagnostics to an output stream, colorizing the
// severity token.
type Reporter struct {
	w      io.Writer
	count  map[Severity]int
	infoOn bool
}

// NewReporter returns a reporter writing to stderr. infoOn mirrors the
// `--info` driver flag: info diagnostics are dropped unless it is set. The
// `--spammy` flag gates whole checkers at registration time
// (internal/checkers) and never reaches this type.
func NewReporter(infoOn bool) *Reporter {
	return &Reporter{w: os.Stderr, count: make(map[Severity]int), infoOn: infoOn}
}

// NewReporterTo is NewReporter with an explicit writer, for tests.
func NewReporterTo(w io.Writer, infoOn bool) *Reporter {
	return &Reporter{w: w, count: make(map[Severity]int), infoOn: infoOn}
}

// Emit writes one diagnostic line, suppressing `info` output unless the
// reporter was constructed with infoOn.
func (r *Reporter) Emit(d Diagnostic) {
	if d.Severity == Info && !r.infoOn {
		return
	}
	r.count[d.Severity]++
	sevText := d.Severity.color().Sprint(string(d.Severity))
	fmt.Fprintf(r.w, "%s:%d %s(%d) %s: %s\n",
		d.Pos.File, d.Pos.Line, d.Function, d.ReturnIndex, sevText, d.Message)
}

// Count returns how many diagnostics of sev have been emitted so far.
func (r *Reporter) Count(sev Severity) int { return r.count[sev] }
