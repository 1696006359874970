package repository

import (
	"database/sql"
	"fmt"
	"time"

	"Screener/internal/domain/models"
	"Screener/pkg/util"
)

// MetricCodec maps MetricRecord to (ticker, roe, peg, prix, date_recup).
type MetricCodec struct{}

func (MetricCodec) Columns() []string {
	return []string{"ticker", "roe", "peg", "prix", "date_recup"}
}

func (MetricCodec) Values(r models.MetricRecord) []interface{} {
	return []interface{}{r.Key, nullable(r.ROE), nullable(r.PEG), r.Price, util.Day(r.ObservedDate)}
}

func (MetricCodec) Scan(rows *sql.Rows) (models.MetricRecord, error) {
	var (
		r        models.MetricRecord
		roe, peg sql.NullFloat64
		day      time.Time
	)
	if err := rows.Scan(&r.Key, &roe, &peg, &r.Price, &day); err != nil {
		return r, err
	}
	if roe.Valid {
		r.ROE = models.Float(roe.Float64)
	}
	if peg.Valid {
		r.PEG = models.Float(peg.Float64)
	}
	r.ObservedDate = util.Day(day)
	return r, nil
}

// RosterCodec maps RosterEntry to (indice, ticker, nom, date_recup).
type RosterCodec struct{}

func (RosterCodec) Columns() []string {
	return []string{"indice", "ticker", "nom", "date_recup"}
}

func (RosterCodec) Values(e models.RosterEntry) []interface{} {
	return []interface{}{e.Universe, e.Key, e.Name, util.Day(e.ObservedDate)}
}

func (RosterCodec) Scan(rows *sql.Rows) (models.RosterEntry, error) {
	var (
		e   models.RosterEntry
		day time.Time
	)
	if err := rows.Scan(&e.Universe, &e.Key, &e.Name, &day); err != nil {
		return e, err
	}
	e.ObservedDate = util.Day(day)
	return e, nil
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// SchemaStatements returns the idempotent DDL for the metrics and roster tables.
// Tables are addressed unqualified afterwards, so database must match the DSN.
func SchemaStatements(database, metricsTable, rosterTable string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            ticker     String,
            roe        Nullable(Float64),
            peg        Nullable(Float64),
            prix       Float64,
            date_recup Date
        ) ENGINE = MergeTree ORDER BY (date_recup, ticker)`, database, metricsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            indice     String,
            ticker     String,
            nom        String,
            date_recup Date
        ) ENGINE = MergeTree ORDER BY (indice, ticker)`, database, rosterTable),
	}
}
