package notifier

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/boylston-chess/bcf-monitor/internal/report"
)

// Console writes the report's text rendering to a writer (stdout by
// default). It is always active; email and chat notifiers are opt-in.
type Console struct {
	out io.Writer
}

// NewConsole creates a console notifier writing to out, or os.Stdout when
// out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Name() string { return "console" }

// Notify prints the text report.
func (c *Console) Notify(rep *report.Report, _ time.Time) error {
	if _, err := fmt.Fprint(c.out, rep.Text); err != nil {
		return &SendError{Notifier: c.Name(), Err: err}
	}
	return nil
}
