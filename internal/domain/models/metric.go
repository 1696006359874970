package models

import (
	"time"

	"Screener/pkg/util"
)

// MetricRecord is one observation of a ticker's fundamentals on a given day.
// ROE is expressed in percent; ROE and PEG are nil when the provider has no value.
type MetricRecord struct {
	Key          string    `json:"ticker"`
	ROE          *float64  `json:"roe"`
	PEG          *float64  `json:"peg"`
	Price        float64   `json:"prix"`
	ObservedDate time.Time `json:"date_recup"`
}

// IsValidKey reports whether a reference key is usable. Placeholder rows
// scraped from upstream tables ("---", "", "1") carry no letter.
func IsValidKey(key string) bool {
	return util.HasLetter(key)
}

// Valid reports whether the record may be persisted.
func (r MetricRecord) Valid() bool {
	return r.Price > 0 && IsValidKey(r.Key)
}

// Identity is the uniqueness key of a record inside a Snapshot.
func (r MetricRecord) Identity() RecordID {
	return RecordID{Key: r.Key, Day: util.FormatDate(r.ObservedDate)}
}

// ObservedOn reports whether the record was observed on day.
func (r MetricRecord) ObservedOn(day time.Time) bool {
	return util.SameDay(r.ObservedDate, day)
}

// RecordID identifies a record by (key, observed_date).
type RecordID struct {
	Key string
	Day string
}

// Float returns a pointer to v, for building records with optional metrics.
func Float(v float64) *float64 { return &v }
