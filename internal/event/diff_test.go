package event

import (
	"reflect"
	"testing"
	"time"
)

func snapshotWith(participants []Participant, details map[string]string) *Snapshot {
	return &Snapshot{
		EventID:      "123",
		Name:         "Reubens Memorial",
		Dates:        DateSet{day(2025, time.October, 25)},
		Details:      details,
		Participants: participants,
		EntriesURL:   "https://boylstonchess.org/tournament/entries/123",
		LastChecked:  time.Now().UTC(),
	}
}

func names(ps []Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestDiffFirstSeen(t *testing.T) {
	current := snapshotWith([]Participant{
		{Name: "Alice Gray", Rating: 1500, Section: "Open"},
		{Name: "Bob Stone", Rating: RatingUnrated, Section: "U1600"},
	}, map[string]string{"entry fee": "$30", "time control": "G/60"})

	rec := Diff(nil, current)

	if !reflect.DeepEqual(rec.Added, current.Participants) {
		t.Errorf("Added = %v, want all current participants", names(rec.Added))
	}
	if len(rec.Removed) != 0 {
		t.Errorf("Removed = %v, want empty", names(rec.Removed))
	}
	if rec.UnchangedCount != 0 {
		t.Errorf("UnchangedCount = %d, want 0", rec.UnchangedCount)
	}
	if len(rec.DetailChanged) != 0 {
		t.Errorf("DetailChanged = %v, want empty", rec.DetailChanged)
	}
}

func TestDiffIdentical(t *testing.T) {
	snap := snapshotWith([]Participant{
		{Name: "Alice Gray", Rating: 1500, Section: "Open"},
	}, map[string]string{"entry fee": "$30"})

	rec := Diff(snap, snap)

	if len(rec.Added) != 0 || len(rec.Removed) != 0 {
		t.Errorf("identical diff should be empty: added=%v removed=%v", names(rec.Added), names(rec.Removed))
	}
	if rec.UnchangedCount != 1 {
		t.Errorf("UnchangedCount = %d, want 1", rec.UnchangedCount)
	}
	if len(rec.DetailChanged) != 0 {
		t.Errorf("DetailChanged = %v, want empty", rec.DetailChanged)
	}
	if rec.HasChanges() {
		t.Error("HasChanges() should be false")
	}
}

func TestDiffAddedAndRemoved(t *testing.T) {
	previous := snapshotWith([]Participant{
		{Name: "Alice Gray", Rating: 1500, Section: "Open"},
		{Name: "Bob Stone", Rating: RatingUnrated, Section: "U1600"},
	}, nil)
	current := snapshotWith([]Participant{
		{Name: "Alice Gray", Rating: 1500, Section: "Open"},
		{Name: "Carol Reed", Rating: 1200, Section: "Open"},
	}, nil)

	rec := Diff(previous, current)

	if got := names(rec.Added); !reflect.DeepEqual(got, []string{"Carol Reed"}) {
		t.Errorf("Added = %v, want [Carol Reed]", got)
	}
	if got := names(rec.Removed); !reflect.DeepEqual(got, []string{"Bob Stone"}) {
		t.Errorf("Removed = %v, want [Bob Stone]", got)
	}
	if rec.UnchangedCount != 1 {
		t.Errorf("UnchangedCount = %d, want 1", rec.UnchangedCount)
	}
	if !rec.HasChanges() {
		t.Error("HasChanges() should be true")
	}
}

func TestDiffNameNormalization(t *testing.T) {
	previous := snapshotWith([]Participant{{Name: "alice  gray"}}, nil)
	current := snapshotWith([]Participant{{Name: "Alice Gray"}}, nil)

	rec := Diff(previous, current)

	if len(rec.Added) != 0 || len(rec.Removed) != 0 {
		t.Errorf("case/whitespace variants should match: added=%v removed=%v", names(rec.Added), names(rec.Removed))
	}
	if rec.UnchangedCount != 1 {
		t.Errorf("UnchangedCount = %d, want 1", rec.UnchangedCount)
	}
}

func TestDiffPreservesOrder(t *testing.T) {
	previous := snapshotWith([]Participant{
		{Name: "Zed"}, {Name: "Ann"}, {Name: "Mia"},
	}, nil)
	current := snapshotWith([]Participant{
		{Name: "Tom"}, {Name: "Ann"}, {Name: "Eve"},
	}, nil)

	rec := Diff(previous, current)

	// Added keeps current list order, removed keeps previous list order.
	if got := names(rec.Added); !reflect.DeepEqual(got, []string{"Tom", "Eve"}) {
		t.Errorf("Added = %v, want [Tom Eve]", got)
	}
	if got := names(rec.Removed); !reflect.DeepEqual(got, []string{"Zed", "Mia"}) {
		t.Errorf("Removed = %v, want [Zed Mia]", got)
	}
}

func TestDiffDetailChanges(t *testing.T) {
	tests := []struct {
		name string
		prev map[string]string
		cur  map[string]string
		want map[string]FieldChange
	}{
		{
			name: "value change",
			prev: map[string]string{"entry fee": "$30"},
			cur:  map[string]string{"entry fee": "$35"},
			want: map[string]FieldChange{"entry fee": {Old: "$30", New: "$35"}},
		},
		{
			name: "trimmed equality is not a change",
			prev: map[string]string{"time control": " G/60 "},
			cur:  map[string]string{"time control": "G/60"},
			want: nil,
		},
		{
			name: "field added",
			prev: nil,
			cur:  map[string]string{"sections": "Open, U1600"},
			want: map[string]FieldChange{"sections": {Old: "(absent)", New: "Open, U1600"}},
		},
		{
			name: "field removed",
			prev: map[string]string{"sections": "Open"},
			cur:  nil,
			want: map[string]FieldChange{"sections": {Old: "Open", New: "(absent)"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Diff(snapshotWith(nil, tt.prev), snapshotWith(nil, tt.cur))
			if !reflect.DeepEqual(rec.DetailChanged, tt.want) {
				t.Errorf("DetailChanged = %v, want %v", rec.DetailChanged, tt.want)
			}
		})
	}
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	previous := snapshotWith([]Participant{{Name: "Alice Gray"}}, map[string]string{"entry fee": "$30"})
	current := snapshotWith([]Participant{{Name: "Bob Stone"}}, map[string]string{"entry fee": "$35"})

	prevCopy := *previous
	curCopy := *current
	Diff(previous, current)

	if !reflect.DeepEqual(*previous, prevCopy) || !reflect.DeepEqual(*current, curCopy) {
		t.Error("Diff mutated its inputs")
	}
}
