// Package scraper fetches and parses the Boylston Chess Foundation website:
// the events listing page, per-event detail pages, and tournament entry
// lists. It targets the site's fixed HTML structure and is the monitor's
// only network-facing collaborator.
package scraper
