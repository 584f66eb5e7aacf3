package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boylston-chess/bcf-monitor/internal/config"
	"github.com/boylston-chess/bcf-monitor/internal/event"
	"github.com/boylston-chess/bcf-monitor/internal/notifier"
	"github.com/boylston-chess/bcf-monitor/internal/report"
	"github.com/boylston-chess/bcf-monitor/internal/scraper"
	"github.com/boylston-chess/bcf-monitor/internal/storage"
)

// fakeSource scripts the pages a run would fetch.
type fakeSource struct {
	listings   []scraper.Listing
	listErr    error
	details    map[string]*scraper.Detail
	detailErr  map[string]error
	entries    map[string][]event.Participant
	entryNames map[string]string
	entryErr   map[string]error
}

func (f *fakeSource) FetchEventList(context.Context) ([]scraper.Listing, error) {
	return f.listings, f.listErr
}

func (f *fakeSource) FetchEventDetail(_ context.Context, url string) (*scraper.Detail, error) {
	if err := f.detailErr[url]; err != nil {
		return nil, err
	}
	if d, ok := f.details[url]; ok {
		return d, nil
	}
	return &scraper.Detail{Fields: map[string]string{}}, nil
}

func (f *fakeSource) FetchEntryList(_ context.Context, url string) ([]event.Participant, string, error) {
	if err := f.entryErr[url]; err != nil {
		return nil, "", err
	}
	return f.entries[url], f.entryNames[url], nil
}

// captureNotifier records the reports it was asked to deliver.
type captureNotifier struct {
	reports []*report.Report
	err     error
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Notify(rep *report.Report, _ time.Time) error {
	c.reports = append(c.reports, rep)
	return c.err
}

var runTime = time.Date(2025, time.October, 20, 9, 0, 0, 0, time.UTC)

func listing(id, name string) scraper.Listing {
	return scraper.Listing{
		ID:         id,
		Name:       name,
		DateRaw:    "October 25-26, 2025",
		DetailURL:  "https://example.test/events/" + id,
		EntriesURL: "https://example.test/tournament/entries/" + id,
	}
}

func newTestMonitor(t *testing.T, cfg *config.Config, source Source) (*Monitor, *storage.Store, *captureNotifier) {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	capture := &captureNotifier{}
	m := New(cfg, source, store, []notifier.Notifier{capture}, func() time.Time { return runTime })
	return m, store, capture
}

func TestRunFirstSeen(t *testing.T) {
	src := &fakeSource{
		listings: []scraper.Listing{listing("641", "Reubens Memorial")},
		entries: map[string][]event.Participant{
			"https://example.test/tournament/entries/641": {
				{Name: "Alice Gray", Rating: 1500, Section: "Open"},
			},
		},
	}
	m, store, capture := newTestMonitor(t, config.Default(), src)

	sum, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Processed != 1 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Errorf("summary = %+v", sum)
	}

	snap, err := store.Load("641")
	if err != nil || snap == nil {
		t.Fatalf("snapshot not saved: %v", err)
	}
	if len(snap.Participants) != 1 {
		t.Errorf("stored %d participants, want 1", len(snap.Participants))
	}
	if snap.Dates.Display() != "2025-10-25 to 2025-10-26" {
		t.Errorf("stored dates = %q", snap.Dates.Display())
	}

	if len(capture.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(capture.reports))
	}
	if !strings.Contains(capture.reports[0].Text, "Alice Gray (1500) [Open]") {
		t.Errorf("first-seen report should list all participants as new:\n%s", capture.reports[0].Text)
	}
}

func TestRunDetectsChanges(t *testing.T) {
	entriesURL := "https://example.test/tournament/entries/641"
	src := &fakeSource{
		listings: []scraper.Listing{listing("641", "Reubens Memorial")},
		entries: map[string][]event.Participant{
			entriesURL: {
				{Name: "Alice Gray", Rating: 1500, Section: "Open"},
				{Name: "Bob Stone", Rating: event.RatingUnrated, Section: "U1600"},
			},
		},
	}
	m, _, capture := newTestMonitor(t, config.Default(), src)

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	src.entries[entriesURL] = []event.Participant{
		{Name: "Alice Gray", Rating: 1500, Section: "Open"},
		{Name: "Carol Reed", Rating: 1200, Section: "Open"},
	}
	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	text := capture.reports[1].Text
	if !strings.Contains(text, "New participants") || !strings.Contains(text, "Carol Reed") {
		t.Errorf("second report missing registration:\n%s", text)
	}
	if !strings.Contains(text, "Withdrawn participants") || !strings.Contains(text, "Bob Stone") {
		t.Errorf("second report missing withdrawal:\n%s", text)
	}
}

func TestRunEntryFetchFailureLeavesSnapshot(t *testing.T) {
	entriesURL := "https://example.test/tournament/entries/641"
	src := &fakeSource{
		listings: []scraper.Listing{listing("641", "Reubens Memorial")},
		entries: map[string][]event.Participant{
			entriesURL: {{Name: "Alice Gray", Rating: 1500}},
		},
	}
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	clock := runTime
	m := New(config.Default(), src, store, nil, func() time.Time { return clock })

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before, _ := store.Load("641")

	// Advance the clock so a rewrite would be visible in LastChecked.
	clock = clock.Add(time.Hour)
	src.entryErr = map[string]error{
		entriesURL: &scraper.NetworkError{URL: entriesURL, Err: errors.New("timeout")},
	}
	sum, err := m.Run(context.Background())
	if err == nil {
		t.Fatal("Run with every event failing should return an error")
	}
	if sum.Failed != 1 {
		t.Errorf("Failed = %d, want 1", sum.Failed)
	}
	if len(sum.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one entry", sum.Warnings)
	}

	after, _ := store.Load("641")
	if after == nil || !after.LastChecked.Equal(before.LastChecked) {
		t.Error("failed fetch must leave the prior snapshot untouched")
	}
}

func TestRunDetailFetchFailureKeepsStoredDetails(t *testing.T) {
	detailURL := "https://example.test/events/641"
	entriesURL := "https://example.test/tournament/entries/641"
	src := &fakeSource{
		listings: []scraper.Listing{listing("641", "Reubens Memorial")},
		details: map[string]*scraper.Detail{
			detailURL: {Fields: map[string]string{"entry fee": "$30", "time control": "G/60"}},
		},
		entries: map[string][]event.Participant{
			entriesURL: {{Name: "Alice Gray", Rating: 1500}},
		},
	}
	m, store, capture := newTestMonitor(t, config.Default(), src)

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	src.detailErr = map[string]error{
		detailURL: &scraper.NetworkError{URL: detailURL, Err: errors.New("timeout")},
	}
	sum, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum.Processed != 1 {
		t.Errorf("summary = %+v", sum)
	}

	snap, _ := store.Load("641")
	if snap == nil || snap.Details["entry fee"] != "$30" || snap.Details["time control"] != "G/60" {
		t.Errorf("stored details = %v, want the prior run's fields kept", snap.Details)
	}
	if text := capture.reports[1].Text; strings.Contains(text, "Detail changes") {
		t.Errorf("a failed detail fetch must not read as detail changes:\n%s", text)
	}
}

func TestRunSaveFailureIsWarned(t *testing.T) {
	entriesURL := "https://example.test/tournament/entries/641"
	src := &fakeSource{
		listings: []scraper.Listing{listing("641", "Reubens Memorial")},
		entries: map[string][]event.Participant{
			entriesURL: {{Name: "Alice Gray", Rating: 1500}},
		},
	}
	dir := t.TempDir()
	store, err := storage.New(dir)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	// A directory squatting on the temp path makes the snapshot write fail.
	if err := os.Mkdir(filepath.Join(dir, "641.json.tmp"), 0755); err != nil {
		t.Fatal(err)
	}
	capture := &captureNotifier{}
	m := New(config.Default(), src, store, []notifier.Notifier{capture}, func() time.Time { return runTime })

	sum, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("a save failure must not fail the run: %v", err)
	}
	if sum.Processed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Warnings) != 1 || !strings.Contains(sum.Warnings[0], "saving snapshot") {
		t.Errorf("Warnings = %v, want a save warning", sum.Warnings)
	}
	if len(capture.reports) != 1 || !strings.Contains(capture.reports[0].Text, "Alice Gray") {
		t.Error("the event's diff should still reach the report")
	}
}

func TestRunPartialFailureDoesNotFailRun(t *testing.T) {
	src := &fakeSource{
		listings: []scraper.Listing{listing("641", "Reubens Memorial"), listing("655", "Friday Blitz")},
		entries: map[string][]event.Participant{
			"https://example.test/tournament/entries/641": {{Name: "Alice Gray", Rating: 1500}},
		},
		entryErr: map[string]error{
			"https://example.test/tournament/entries/655": errors.New("boom"),
		},
	}
	m, _, _ := newTestMonitor(t, config.Default(), src)

	sum, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("partial failure should not fail the run: %v", err)
	}
	if sum.Processed != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunKeywordRules(t *testing.T) {
	src := &fakeSource{
		listings: []scraper.Listing{
			listing("641", "Scholastic Open"),
			listing("655", "Championship Swiss"),
		},
		entries: map[string][]event.Participant{
			"https://example.test/tournament/entries/641": {{Name: "Alice Gray"}},
			"https://example.test/tournament/entries/655": {{Name: "Bob Stone"}},
		},
	}
	cfg := config.Default()
	cfg.Exclude = []string{"scholastic"}
	m, store, _ := newTestMonitor(t, cfg, src)

	sum, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Skipped != 1 || sum.Processed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if snap, _ := store.Load("641"); snap != nil {
		t.Error("excluded event must not be snapshotted")
	}
	if snap, _ := store.Load("655"); snap == nil {
		t.Error("matching event should be snapshotted")
	}
}

func TestRunPrefersEntryPageName(t *testing.T) {
	entriesURL := "https://example.test/tournament/entries/641"
	src := &fakeSource{
		listings:   []scraper.Listing{listing("641", "Upcoming Events")},
		entries:    map[string][]event.Participant{entriesURL: {{Name: "Alice Gray"}}},
		entryNames: map[string]string{entriesURL: "Unrated Friday Night Blitz"},
	}
	m, store, _ := newTestMonitor(t, config.Default(), src)

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, _ := store.Load("641")
	if snap == nil || snap.Name != "Unrated Friday Night Blitz" {
		t.Errorf("snapshot name = %+v, want entry-list page name", snap)
	}
}

func TestRunUnparseableDateStillReported(t *testing.T) {
	l := listing("641", "Mystery Masters")
	l.DateRaw = "sometime soon"
	src := &fakeSource{
		listings: []scraper.Listing{l},
		entries: map[string][]event.Participant{
			l.EntriesURL: {{Name: "Alice Gray"}},
		},
	}
	m, _, capture := newTestMonitor(t, config.Default(), src)

	sum, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Processed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !strings.Contains(capture.reports[0].Text, "Mystery Masters") {
		t.Errorf("undated event must stay in the report:\n%s", capture.reports[0].Text)
	}
	if !strings.Contains(capture.reports[0].Text, "Date: TBD") {
		t.Errorf("undated event should render TBD:\n%s", capture.reports[0].Text)
	}
}

func TestRunDiscoveryFailure(t *testing.T) {
	src := &fakeSource{listErr: errors.New("connection refused")}
	m, _, capture := newTestMonitor(t, config.Default(), src)

	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("discovery failure must fail the run")
	}
	if len(capture.reports) != 0 {
		t.Error("no report should be sent when discovery fails")
	}
}

func TestRunNotifierFailureIgnored(t *testing.T) {
	src := &fakeSource{
		listings: []scraper.Listing{listing("641", "Reubens Memorial")},
		entries: map[string][]event.Participant{
			"https://example.test/tournament/entries/641": {{Name: "Alice Gray"}},
		},
	}
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	failing := &captureNotifier{err: &notifier.SendError{Notifier: "capture", Err: errors.New("smtp down")}}
	m := New(config.Default(), src, store, []notifier.Notifier{failing}, func() time.Time { return runTime })

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("notifier failure must not fail the run: %v", err)
	}
}

func TestRunPurgesExpired(t *testing.T) {
	src := &fakeSource{listings: nil}
	m, store, _ := newTestMonitor(t, config.Default(), src)

	expired := &event.Snapshot{
		EventID:      "100",
		Name:         "Long Gone Open",
		Dates:        event.DateSet{runTime.AddDate(0, 0, -30)},
		Participants: []event.Participant{},
		EntriesURL:   "https://example.test/tournament/entries/100",
		LastChecked:  runTime.AddDate(0, 0, -31),
	}
	if err := store.Save(expired); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sum, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Purged != 1 {
		t.Errorf("Purged = %d, want 1", sum.Purged)
	}
	if snap, _ := store.Load("100"); snap != nil {
		t.Error("expired snapshot should be gone after the run")
	}
}
