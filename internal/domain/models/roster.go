package models

import "time"

// RosterEntry is one constituent of a universe (persisted as indice, ticker, nom, date_recup).
type RosterEntry struct {
	Universe     string    `json:"indice"`
	Key          string    `json:"ticker"`
	Name         string    `json:"nom"`
	ObservedDate time.Time `json:"date_recup"`
}

// Roster is the ordered membership list of one universe.
type Roster []RosterEntry

// Keys returns the valid keys of the roster in order, without duplicates.
func (r Roster) Keys() []string {
	seen := make(map[string]struct{}, len(r))
	out := make([]string, 0, len(r))
	for _, e := range r {
		if !IsValidKey(e.Key) {
			continue
		}
		if _, dup := seen[e.Key]; dup {
			continue
		}
		seen[e.Key] = struct{}{}
		out = append(out, e.Key)
	}
	return out
}
