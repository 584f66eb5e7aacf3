// Package report turns a run's change records into a single human-facing
// report with matching plain-text and HTML renderings. Both renderings are
// generated from the same filtered, ordered record slice so they cannot
// disagree.
package report

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/boylston-chess/bcf-monitor/internal/event"
)

// Report is the aggregated result of one monitoring run.
type Report struct {
	Text     string
	HTML     string
	Included int
}

// Subject returns the notification subject line for a run date.
func Subject(runDate time.Time) string {
	return "BCF Events Update - " + runDate.Format("2006-01-02")
}

// Build aggregates change records into a report. An event is included iff
// its earliest date falls within [runDate, runDate+windowDays]; events whose
// dates could not be parsed are treated as in-window so they are never
// silently hidden. With onlyChanges set, in-window events without
// registrations, withdrawals or detail changes are dropped too. Events are
// ordered by earliest date ascending, then name, with undated events last.
func Build(records []*event.ChangeRecord, runDate time.Time, windowDays int, onlyChanges bool) *Report {
	included := make([]*event.ChangeRecord, 0, len(records))
	for _, rec := range records {
		if len(rec.Event.Dates) > 0 && !rec.Event.Dates.EarliestWithin(runDate, windowDays) {
			continue
		}
		if onlyChanges && !rec.HasChanges() {
			continue
		}
		included = append(included, rec)
	}

	sort.SliceStable(included, func(i, j int) bool {
		di, dj := included[i].Event.Dates, included[j].Event.Dates
		switch {
		case len(di) == 0 && len(dj) == 0:
			return included[i].Event.Name < included[j].Event.Name
		case len(di) == 0:
			return false
		case len(dj) == 0:
			return true
		}
		if !di.First().Equal(dj.First()) {
			return di.First().Before(dj.First())
		}
		return included[i].Event.Name < included[j].Event.Name
	})

	return &Report{
		Text:     renderText(included, runDate),
		HTML:     renderHTML(included, runDate),
		Included: len(included),
	}
}

func changeDelta(rec *event.ChangeRecord) string {
	if len(rec.Added) == 0 && len(rec.Removed) == 0 {
		return "(no changes)"
	}
	return fmt.Sprintf("(+%d -%d)", len(rec.Added), len(rec.Removed))
}

func renderText(records []*event.ChangeRecord, runDate time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "BCF event updates (%s)\n", runDate.Format("2006-01-02"))
	b.WriteString(strings.Repeat("=", 50) + "\n")

	if len(records) == 0 {
		b.WriteString("\nNo events within window matching rules.\n")
		return b.String()
	}

	for _, rec := range records {
		ev := rec.Event

		if ev.DetailURL != "" {
			fmt.Fprintf(&b, "\n%s - %s\n", ev.Name, ev.DetailURL)
		} else {
			fmt.Fprintf(&b, "\n%s\n", ev.Name)
		}
		fmt.Fprintf(&b, "   Date: %s\n", ev.Dates.Display())
		fmt.Fprintf(&b, "   Participants: %d %s\n", len(ev.Participants), changeDelta(rec))

		if len(rec.Added) > 0 {
			b.WriteString("   New participants:\n")
			for _, p := range rec.Added {
				fmt.Fprintf(&b, "      - %s\n", p)
			}
		}
		if len(rec.Removed) > 0 {
			b.WriteString("   Withdrawn participants:\n")
			for _, p := range rec.Removed {
				fmt.Fprintf(&b, "      - %s\n", p)
			}
		}
		if len(rec.DetailChanged) > 0 {
			b.WriteString("   Detail changes:\n")
			for _, field := range sortedFields(rec.DetailChanged) {
				ch := rec.DetailChanged[field]
				fmt.Fprintf(&b, "      - %s: %s -> %s\n", field, ch.Old, ch.New)
			}
		}
		fmt.Fprintf(&b, "   Entry list: %s\n", ev.EntriesURL)
	}

	b.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	b.WriteString("This is an automated message from BCF Events Monitor.\n")
	return b.String()
}

func renderHTML(records []*event.ChangeRecord, runDate time.Time) string {
	var b strings.Builder

	b.WriteString("<html><body>\n")
	fmt.Fprintf(&b, "<p><strong>BCF event updates</strong><br/>Date: %s</p>\n<hr/>\n",
		runDate.Format("2006-01-02"))

	if len(records) == 0 {
		b.WriteString("<p>No events within window matching rules.</p>\n")
	}

	for _, rec := range records {
		ev := rec.Event
		name := html.EscapeString(ev.Name)

		if ev.DetailURL != "" {
			fmt.Fprintf(&b, "<p><a href=%q>%s</a></p>\n", ev.DetailURL, name)
		} else {
			fmt.Fprintf(&b, "<p>%s</p>\n", name)
		}
		fmt.Fprintf(&b, "<div>Date: %s</div>\n", ev.Dates.Display())
		fmt.Fprintf(&b, "<div>Participants: %d %s</div>\n", len(ev.Participants), changeDelta(rec))

		if len(rec.Added) > 0 {
			b.WriteString("<div>New participants:</div><ul>\n")
			for _, p := range rec.Added {
				fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(p.String()))
			}
			b.WriteString("</ul>\n")
		}
		if len(rec.Removed) > 0 {
			b.WriteString("<div>Withdrawn participants:</div><ul>\n")
			for _, p := range rec.Removed {
				fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(p.String()))
			}
			b.WriteString("</ul>\n")
		}
		if len(rec.DetailChanged) > 0 {
			b.WriteString("<div>Detail changes:</div><ul>\n")
			for _, field := range sortedFields(rec.DetailChanged) {
				ch := rec.DetailChanged[field]
				fmt.Fprintf(&b, "<li>%s: %s &rarr; %s</li>\n",
					html.EscapeString(field), html.EscapeString(ch.Old), html.EscapeString(ch.New))
			}
			b.WriteString("</ul>\n")
		}
		fmt.Fprintf(&b, "<div>Entry list: <a href=%q>%s</a></div>\n", ev.EntriesURL, ev.EntriesURL)
	}

	b.WriteString("<hr/>\n<div>This is an automated message from BCF Events Monitor.</div>\n</body></html>\n")
	return b.String()
}

func sortedFields(m map[string]event.FieldChange) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
