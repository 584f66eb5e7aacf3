package event

import (
	"sort"
	"strings"
)

// detailAbsent marks a detail field present on only one side of a diff.
const detailAbsent = "(absent)"

// FieldChange is an old/new pair for one detail field that differs between
// two snapshots of the same event.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangeRecord is the structured delta between the stored snapshot of an
// event and its freshly fetched state. It is built once per run and consumed
// by the report builder; it is never persisted.
type ChangeRecord struct {
	Event          *Snapshot              `json:"event"`
	Added          []Participant          `json:"added"`
	Removed        []Participant          `json:"removed"`
	UnchangedCount int                    `json:"unchanged_count"`
	DetailChanged  map[string]FieldChange `json:"detail_changed,omitempty"`
}

// HasChanges reports whether anything report-worthy happened: a registration,
// a withdrawal, or a detail field change.
func (c *ChangeRecord) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0 || len(c.DetailChanged) > 0
}

// Diff compares an event's previous snapshot against its current one and
// returns the change record. previous may be nil (first time the event is
// seen), in which case every current participant is reported as added.
// Neither snapshot is mutated.
//
// A participant who withdraws and re-registers between two checks looks
// identical to one who never left; point-in-time diffing cannot tell them
// apart.
func Diff(previous, current *Snapshot) *ChangeRecord {
	rec := &ChangeRecord{
		Event:   current,
		Added:   []Participant{},
		Removed: []Participant{},
	}

	prevNames := make(map[string]bool)
	var prevParticipants []Participant
	var prevDetails map[string]string
	if previous != nil {
		prevParticipants = previous.Participants
		prevDetails = previous.Details
		for _, p := range prevParticipants {
			prevNames[NormalizeName(p.Name)] = true
		}
	}

	curNames := make(map[string]bool)
	for _, p := range current.Participants {
		curNames[NormalizeName(p.Name)] = true
	}

	for _, p := range current.Participants {
		if prevNames[NormalizeName(p.Name)] {
			rec.UnchangedCount++
		} else {
			rec.Added = append(rec.Added, p)
		}
	}
	for _, p := range prevParticipants {
		if !curNames[NormalizeName(p.Name)] {
			rec.Removed = append(rec.Removed, p)
		}
	}

	// A first sighting has nothing to compare details against; the roster
	// carries the fresh-event signal on its own.
	if previous != nil {
		rec.DetailChanged = diffDetails(prevDetails, current.Details)
	}
	return rec
}

// diffDetails compares tracked detail fields by trimmed string equality over
// the union of keys. Fields present on one side only are diffed against the
// absent marker. Returns nil when nothing differs.
func diffDetails(prev, cur map[string]string) map[string]FieldChange {
	keys := make([]string, 0, len(prev)+len(cur))
	seen := make(map[string]bool)
	for k := range prev {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range cur {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var changed map[string]FieldChange
	for _, k := range keys {
		oldVal, oldOK := prev[k]
		newVal, newOK := cur[k]
		o, n := strings.TrimSpace(oldVal), strings.TrimSpace(newVal)
		if !oldOK {
			o = detailAbsent
		}
		if !newOK {
			n = detailAbsent
		}
		if o != n {
			if changed == nil {
				changed = make(map[string]FieldChange)
			}
			changed[k] = FieldChange{Old: o, New: n}
		}
	}
	return changed
}
