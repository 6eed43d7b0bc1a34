// Package scraper fetches raw event listings from configured websites.
//
// HTML sources are scraped with CSS selectors through goquery; JSON sources
// are validated item by item against an embedded JSON schema. Sources run
// concurrently, while each source fetches its pages sequentially through a
// rate-limited, retrying Fetcher. Listings that lack a title, location, link
// or time information are dropped by the source itself.
package scraper
