// Package classify assigns event types and priorities and selects the weekly
// review candidates.
//
// Classification uses an ordered keyword table (market, fair and festival
// rank highest, food and music next, everything else lowest, free events get
// a small boost). An optional Assistant can override the rules; any failure
// falls back to them. SelectTopCandidates caps each event type while filling
// most of the slots so a single category cannot take over the review set.
package classify
