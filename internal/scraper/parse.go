package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/boylston-chess/bcf-monitor/internal/event"
)

var (
	eventIDRe = regexp.MustCompile(`/(?:events|tournament/register|tournament/entries)/(\d+)`)
	entriesRe = regexp.MustCompile(`^/tournament/entries/\d+$`)
	detailRe  = regexp.MustCompile(`^/events/\d+`)
)

// genericNames are headings that never identify a specific event.
var genericNames = map[string]bool{
	"upcoming events": true,
	"events":          true,
	"tournaments":     true,
	"chess events":    true,
}

// FetchEventList fetches the events listing page and extracts one Listing
// per discovered event, in page order.
func (s *Scraper) FetchEventList(ctx context.Context) ([]Listing, error) {
	body, err := s.fetch(ctx, s.EventsURL())
	if err != nil {
		return nil, err
	}
	return s.ParseEventList(bytes.NewReader(body))
}

// ParseEventList extracts event listings from the events page HTML. Each
// direct child of the #events container is treated as one event block; the
// event id comes from its detail, registration or entries links. Blocks
// yielding no id are skipped, and duplicate ids keep their first occurrence.
func (s *Scraper) ParseEventList(r io.Reader) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing listing HTML: %w", err)
	}

	var listings []Listing
	seen := make(map[string]bool)

	doc.Find("#events").Children().Each(func(_ int, block *goquery.Selection) {
		l := s.extractListing(block)
		if l.ID == "" || seen[l.ID] {
			return
		}
		seen[l.ID] = true
		listings = append(listings, l)
	})

	return listings, nil
}

func (s *Scraper) extractListing(block *goquery.Selection) Listing {
	var l Listing

	// Prefer a detail link inside the title div for the event name.
	block.Find("div.title a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if detailRe.MatchString(href) {
			l.DetailURL = s.resolve(href)
			l.Name = collapse(a.Text())
			return false
		}
		if l.Name == "" {
			l.Name = collapse(a.Text())
		}
		return true
	})

	block.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if l.ID == "" {
			if m := eventIDRe.FindStringSubmatch(href); m != nil {
				l.ID = m[1]
			}
		}
		if l.EntriesURL == "" && entriesRe.MatchString(href) {
			l.EntriesURL = s.resolve(href)
		}
		if l.DetailURL == "" && detailRe.MatchString(href) {
			l.DetailURL = s.resolve(href)
		}
	})

	if l.EntriesURL == "" && l.ID != "" {
		l.EntriesURL = s.resolve("/tournament/entries/" + l.ID)
	}
	if l.Name == "" {
		if h := block.Find("h1, h2, h3, h4, h5").First(); h.Length() > 0 {
			l.Name = collapse(h.Text())
		}
	}
	l.DateRaw = labeledDate(block)

	return l
}

// labeledDate finds a "Date" labelled value inside an event block, checking
// table rows first and then dt/dd pairs.
func labeledDate(block *goquery.Selection) string {
	var date string
	block.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td, th")
		if cells.Length() < 2 {
			return true
		}
		if strings.EqualFold(collapse(cells.First().Text()), "date") {
			date = collapse(cells.Eq(1).Text())
			return false
		}
		return true
	})
	if date != "" {
		return date
	}

	block.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if strings.EqualFold(collapse(dt.Text()), "date") {
			if dd := dt.NextFiltered("dd"); dd.Length() > 0 {
				date = collapse(dd.Text())
				return false
			}
		}
		return true
	})
	return date
}

// FetchEventDetail fetches and parses an event detail page.
func (s *Scraper) FetchEventDetail(ctx context.Context, pageURL string) (*Detail, error) {
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ParseEventDetail(bytes.NewReader(body))
}

// ParseEventDetail extracts the event name, raw date text and all key/value
// detail fields (entry fee, time control, sections, ...) from a detail page.
// Fields come from two-column table rows and dt/dd pairs; keys are
// lowercased.
func ParseEventDetail(r io.Reader) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing detail HTML: %w", err)
	}

	d := &Detail{Fields: make(map[string]string)}

	if title := collapse(doc.Find("title").First().Text()); title != "" {
		if !strings.Contains(strings.ToLower(title), "boylston") {
			d.Name = title
		}
	}
	if h1 := collapse(doc.Find("h1").First().Text()); h1 != "" && !genericNames[strings.ToLower(h1)] {
		d.Name = h1
	}

	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := strings.ToLower(collapse(cells.First().Text()))
		val := collapse(cells.Eq(1).Text())
		if key == "" || val == "" {
			return
		}
		d.Fields[key] = val
	})

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		key := strings.ToLower(collapse(dt.Text()))
		val := collapse(dd.Text())
		if key == "" || val == "" {
			return
		}
		d.Fields[key] = val
	})

	for _, key := range []string{"name", "event name", "tournament name", "title"} {
		if v, ok := d.Fields[key]; ok && !genericNames[strings.ToLower(v)] {
			d.Name = v
			break
		}
	}
	for _, key := range []string{"date", "event date", "tournament date"} {
		if v, ok := d.Fields[key]; ok {
			d.DateRaw = v
			break
		}
	}

	return d, nil
}

// FetchEntryList fetches an entry-list page and returns the participants in
// page order plus the event name found on the page (empty when absent).
func (s *Scraper) FetchEntryList(ctx context.Context, pageURL string) ([]event.Participant, string, error) {
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	participants, name, err := ParseEntryList(bytes.NewReader(body))
	return participants, name, err
}

// ParseEntryList extracts participants from an entry-list page. The site's
// #members table (#, Name, Rating, USCF ID, Section, Byes) is tried first,
// then any table whose header mentions a name column. Names are
// whitespace-normalized and duplicates dropped.
func ParseEntryList(r io.Reader) ([]event.Participant, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("parsing entry list HTML: %w", err)
	}

	name := entryListEventName(doc)

	participants := parseMembersTable(doc.Find("table#members").First())
	if len(participants) == 0 {
		participants = parseGenericTables(doc)
	}

	return dedupeParticipants(participants), name, nil
}

// entryListEventName pulls the event name out of a title like
// "Registration List • Reubens Memorial • Boylston Chess Foundation".
func entryListEventName(doc *goquery.Document) string {
	title := collapse(doc.Find("title").First().Text())
	if title == "" || !strings.Contains(title, "•") {
		return ""
	}
	parts := strings.Split(title, "•")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseMembersTable(table *goquery.Selection) []event.Participant {
	var participants []event.Participant
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		cells := tr.Find("td, th")
		if cells.Length() < 6 {
			return
		}
		name := collapse(cells.Eq(1).Text())
		if name == "" {
			return
		}
		participants = append(participants, event.Participant{
			Name:    name,
			Rating:  event.ParseRating(cells.Eq(2).Text()),
			Section: collapse(cells.Eq(4).Text()),
		})
	})
	return participants
}

var numericRe = regexp.MustCompile(`^\d+$`)

// headerKeywords mark a table as a plausible entry list.
var headerKeywords = []string{"name", "player", "entrant", "entry", "participant"}

// navWords filter out navigation text misread as entrant names.
var navWords = []string{"home", "about", "contact", "login", "register", "search", "menu", "navigation"}

func parseGenericTables(doc *goquery.Document) []event.Participant {
	var participants []event.Participant

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		header := strings.ToLower(collapse(rows.First().Text()))
		matched := false
		for _, kw := range headerKeywords {
			if strings.Contains(header, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		rows.Each(func(i int, tr *goquery.Selection) {
			if i == 0 {
				return
			}
			cells := tr.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			name := collapse(cells.Eq(1).Text())
			if name == "" {
				name = collapse(cells.Eq(0).Text())
			}
			if !plausibleName(name) {
				return
			}
			p := event.Participant{Name: name}
			if cells.Length() > 2 {
				p.Rating = event.ParseRating(cells.Eq(2).Text())
			}
			if cells.Length() > 4 {
				p.Section = collapse(cells.Eq(4).Text())
			}
			participants = append(participants, p)
		})
	})

	return participants
}

func plausibleName(name string) bool {
	if len(name) < 2 || numericRe.MatchString(name) || len(strings.Fields(name)) > 4 {
		return false
	}
	lower := strings.ToLower(name)
	switch lower {
	case "name", "player", "entrant", "entry", "#", "no", "yes":
		return false
	}
	for _, w := range navWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

func dedupeParticipants(participants []event.Participant) []event.Participant {
	seen := make(map[string]bool)
	out := make([]event.Participant, 0, len(participants))
	for _, p := range participants {
		key := event.NormalizeName(p.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
