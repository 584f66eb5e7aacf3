package event

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RatingUnrated is the sentinel rating for a participant with no published
// rating. The entry list renders these as "unrated".
const RatingUnrated = 0

// Participant is one entry on a tournament registration list. Diff identity
// is the normalized name; the source site exposes no stabler key.
type Participant struct {
	Name    string `json:"name"`
	Rating  int    `json:"rating"`
	Section string `json:"section,omitempty"`
}

// DisplayRating renders the numeric rating, or "unrated" for the sentinel.
func (p Participant) DisplayRating() string {
	if p.Rating == RatingUnrated {
		return "unrated"
	}
	return strconv.Itoa(p.Rating)
}

// String renders the participant the way reports list them:
// "Name (rating) [section]".
func (p Participant) String() string {
	s := p.Name + " (" + p.DisplayRating() + ")"
	if p.Section != "" {
		s += " [" + p.Section + "]"
	}
	return s
}

var nameSpaceRe = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and collapses whitespace so that "A.  Smith " and
// "a. smith" count as the same entrant.
func NormalizeName(name string) string {
	return nameSpaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// ParseRating reads a scraped rating cell. Anything non-numeric ("UNR",
// "unrated", empty) maps to the unrated sentinel.
func ParseRating(s string) int {
	r, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || r < 0 {
		return RatingUnrated
	}
	return r
}

// Snapshot is the last recorded state of one event: its roster, metadata and
// source URLs. At most one snapshot exists per event id; every successful
// check overwrites it in place.
type Snapshot struct {
	EventID      string            `json:"event_id"`
	Name         string            `json:"name"`
	Dates        DateSet           `json:"dates"`
	Details      map[string]string `json:"details,omitempty"`
	Participants []Participant     `json:"participants"`
	DetailURL    string            `json:"detail_url,omitempty"`
	EntriesURL   string            `json:"entries_url"`
	LastChecked  time.Time         `json:"last_checked"`
}
