// Package httpapi serves canonical events, candidate sets and scraping logs
// over HTTP, and accepts enrichment written back by review collaborators.
// Responses use JSend envelopes.
package httpapi
