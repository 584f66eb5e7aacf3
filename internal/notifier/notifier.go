package notifier

import (
	"fmt"
	"time"

	"github.com/boylston-chess/bcf-monitor/internal/report"
)

// Notifier delivers a run's report to one destination.
type Notifier interface {
	// Name identifies the notifier in logs.
	Name() string
	// Notify delivers the report for the given run date.
	Notify(rep *report.Report, runDate time.Time) error
}

// SendError wraps a failed delivery. Send failures are logged by the
// orchestrator and never affect the run's exit status.
type SendError struct {
	Notifier string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s notification failed: %v", e.Notifier, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
