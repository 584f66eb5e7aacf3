package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boylston-chess/bcf-monitor/internal/config"
	"github.com/boylston-chess/bcf-monitor/internal/event"
	"github.com/boylston-chess/bcf-monitor/internal/logger"
	"github.com/boylston-chess/bcf-monitor/internal/notifier"
	"github.com/boylston-chess/bcf-monitor/internal/report"
	"github.com/boylston-chess/bcf-monitor/internal/scraper"
	"github.com/boylston-chess/bcf-monitor/internal/storage"
)

// Source is the network-facing collaborator the monitor drives. The scraper
// implements it; tests substitute fakes.
type Source interface {
	FetchEventList(ctx context.Context) ([]scraper.Listing, error)
	FetchEventDetail(ctx context.Context, url string) (*scraper.Detail, error)
	FetchEntryList(ctx context.Context, url string) ([]event.Participant, string, error)
}

// Summary describes how a run went. Per-event failures degrade the run
// without failing it; see Failed.
type Summary struct {
	Discovered int
	Processed  int
	Skipped    int
	Failed     int
	Purged     int
	Warnings   []string
}

// Monitor drives one run: discovery, filtering, per-event fetch+diff+store,
// report emission, and expiry cleanup. Events are processed sequentially;
// external scheduling guarantees no overlapping runs.
type Monitor struct {
	cfg       *config.Config
	source    Source
	store     *storage.Store
	notifiers []notifier.Notifier
	counters  *logger.Counters
	now       func() time.Time
}

// New assembles a Monitor. A nil now defaults to time.Now.
func New(cfg *config.Config, source Source, store *storage.Store, notifiers []notifier.Notifier, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		cfg:       cfg,
		source:    source,
		store:     store,
		notifiers: notifiers,
		counters:  logger.NewCounters(),
		now:       now,
	}
}

// Run executes one monitoring pass. It returns an error only when discovery
// failed or every discovered event failed to process; individual event
// failures are reported as warnings in the summary instead.
func (m *Monitor) Run(ctx context.Context) (*Summary, error) {
	runTime := m.now().UTC()
	sum := &Summary{}

	listings, err := m.source.FetchEventList(ctx)
	if err != nil {
		return sum, fmt.Errorf("discovering events: %w", err)
	}
	sum.Discovered = len(listings)
	m.counters.Add("events.discovered", int64(len(listings)))

	var records []*event.ChangeRecord
	for _, listing := range listings {
		rec, err := m.processEvent(ctx, listing, runTime, sum)
		switch {
		case err != nil:
			sum.Failed++
			m.counters.Incr("events.failed")
			sum.Warnings = append(sum.Warnings, err.Error())
			logger.Warn("event processing failed", logger.Fields{"event_id": listing.ID, "error": err.Error()})
		case rec == nil:
			sum.Skipped++
			m.counters.Incr("events.skipped")
		default:
			sum.Processed++
			m.counters.Incr("events.processed")
			records = append(records, rec)
		}
	}

	rep := report.Build(records, runTime, m.cfg.DaysBefore, m.cfg.OnlyChanges)
	for _, n := range m.notifiers {
		if err := n.Notify(rep, runTime); err != nil {
			// Delivery failures never affect the run's outcome.
			logger.Error("notification failed", logger.Fields{"notifier": n.Name()}, err)
		}
	}

	purged, err := m.store.PurgeExpired(runTime)
	if err != nil {
		logger.Warn("expiry cleanup failed", logger.Fields{"error": err.Error()})
	}
	sum.Purged = purged

	logger.Info("run complete", logger.Fields{"counters": m.counters.Snapshot(), "warnings": len(sum.Warnings)})

	if sum.Discovered > 0 && sum.Failed == sum.Discovered {
		return sum, fmt.Errorf("all %d discovered events failed to process", sum.Discovered)
	}
	return sum, nil
}

// processEvent handles one event as a unit: detail fetch (best effort),
// entry fetch (required), keyword filtering, date parsing, diff against the
// stored snapshot, and snapshot overwrite. An entry fetch failure leaves the
// stored snapshot untouched; a detail fetch failure keeps the stored detail
// fields so they never read as removed. A (nil, nil) return means the event
// was filtered out by the keyword rules.
func (m *Monitor) processEvent(ctx context.Context, listing scraper.Listing, runTime time.Time, sum *Summary) (*event.ChangeRecord, error) {
	name := listing.Name
	dateRaw := listing.DateRaw
	var details map[string]string
	var detailURL string
	detailFailed := false

	if listing.DetailURL != "" {
		detailURL = listing.DetailURL
		detail, err := m.source.FetchEventDetail(ctx, listing.DetailURL)
		if err != nil {
			// The entry list alone still supports a useful check.
			detailFailed = true
			m.counters.Incr("fetch.detail_failures")
			logger.Warn("detail fetch failed", logger.Fields{"event_id": listing.ID, "error": err.Error()})
		} else {
			details = detail.Fields
			if detail.Name != "" {
				name = detail.Name
			}
			if dateRaw == "" {
				dateRaw = detail.DateRaw
			}
		}
	}

	participants, entryName, err := m.source.FetchEntryList(ctx, listing.EntriesURL)
	if err != nil {
		m.counters.Incr("fetch.entry_failures")
		return nil, fmt.Errorf("event %s: fetching entry list: %w", listing.ID, err)
	}
	if entryName != "" {
		name = entryName
	}
	if name == "" {
		name = "Unknown Event"
	}

	if !m.matchRules(name) {
		logger.Info("event filtered out by include/exclude rules", logger.Fields{"event_id": listing.ID, "event": name})
		return nil, nil
	}

	dates, err := event.ParseDates(dateRaw, runTime.Year())
	if err != nil {
		// Unparseable dates leave the event permanently in-window rather
		// than silently hidden.
		var dfe *event.DateFormatError
		if errors.As(err, &dfe) {
			m.counters.Incr("dates.unparseable")
			logger.Warn("unparseable event date", logger.Fields{"event_id": listing.ID, "raw": dateRaw})
		}
		dates = nil
	}

	previous, err := m.store.Load(listing.ID)
	if err != nil {
		// A corrupt stored snapshot degrades to a first-seen diff.
		logger.Warn("loading previous snapshot failed", logger.Fields{"event_id": listing.ID, "error": err.Error()})
		previous = nil
	}

	if detailFailed && previous != nil {
		// Carry the stored fields forward so a transient detail failure does
		// not read as every field vanishing.
		details = previous.Details
	}

	current := &event.Snapshot{
		EventID:      listing.ID,
		Name:         name,
		Dates:        dates,
		Details:      details,
		Participants: participants,
		DetailURL:    detailURL,
		EntriesURL:   listing.EntriesURL,
		LastChecked:  runTime,
	}

	rec := event.Diff(previous, current)

	if err := m.store.Save(current); err != nil {
		// Persistence failed for this event; its diff still reaches the
		// report, and the next run re-detects from the stale snapshot.
		m.counters.Incr("storage.save_failures")
		logger.Error("saving snapshot failed", logger.Fields{"event_id": listing.ID}, err)
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("event %s: saving snapshot: %v", listing.ID, err))
	}

	return rec, nil
}

// matchRules applies the include/exclude keyword rules to an event name.
func (m *Monitor) matchRules(name string) bool {
	lower := strings.ToLower(name)

	if len(m.cfg.Include) > 0 {
		found := false
		for _, kw := range m.cfg.Include {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, kw := range m.cfg.Exclude {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}
