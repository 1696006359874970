package usecase

import (
	"context"
	"fmt"
	"time"

	"Screener/internal/domain/models"
	domrepo "Screener/internal/domain/repository"
	domsvc "Screener/internal/domain/service"
	"Screener/pkg/cache"
	"Screener/pkg/config"
	applogger "Screener/pkg/logger"
	"Screener/pkg/util"
)

// Screener answers read-side queries: threshold screens, coverage and
// single-ticker lookups.
type Screener struct {
	cfg     *config.Config
	rosters *RosterService
	store   domrepo.SnapshotStore
	source  domsvc.MetricSource
	cache   cache.Service
	log     *applogger.Logger
}

func NewScreener(cfg *config.Config, rosters *RosterService, store domrepo.SnapshotStore, source domsvc.MetricSource, c cache.Service, l *applogger.Logger) *Screener {
	if l == nil {
		l = applogger.Nop()
	}
	return &Screener{cfg: cfg, rosters: rosters, store: store, source: source, cache: c, log: l}
}

// Today is the default as_of day.
func (s *Screener) Today() time.Time { return util.Today(s.cfg.Location()) }

// Universes lists configured universe names in configuration order.
func (s *Screener) Universes() []string {
	out := make([]string, 0, len(s.cfg.Universes))
	for _, u := range s.cfg.Universes {
		out = append(out, u.Name)
	}
	return out
}

// Roster returns the membership of a universe.
func (s *Screener) Roster(ctx context.Context, universe string) (models.Roster, error) {
	return s.rosters.Roster(ctx, universe)
}

// RefreshRoster forces a roster scrape.
func (s *Screener) RefreshRoster(ctx context.Context, universe string) (models.Roster, error) {
	return s.rosters.Refresh(ctx, universe)
}

// Screen projects the archived snapshot of asOf on the universe with the given thresholds.
func (s *Screener) Screen(ctx context.Context, universe string, asOf time.Time, minROE, maxPEG float64) (models.ScreenResult, error) {
	asOf = util.Day(asOf)
	roster, err := s.rosters.Roster(ctx, universe)
	if err != nil {
		return models.ScreenResult{}, err
	}

	names := make(map[string]string, len(roster))
	for _, e := range roster {
		names[e.Key] = e.Name
	}

	rows := Project(s.store.Read(ctx), asOf, roster.Keys(), ThresholdPredicate(minROE, maxPEG))
	res := models.ScreenResult{
		Universe: universe,
		AsOf:     util.FormatDate(asOf),
		MinROE:   minROE,
		MaxPEG:   maxPEG,
		Rows:     make([]models.ScreenRow, 0, len(rows)),
	}
	for _, r := range rows {
		res.Rows = append(res.Rows, models.ScreenRow{MetricRecord: r, Name: names[r.Key]})
	}
	return res, nil
}

// Coverage reports which roster keys are archived for asOf.
func (s *Screener) Coverage(ctx context.Context, universe string, asOf time.Time) (models.Coverage, error) {
	asOf = util.Day(asOf)
	keys, err := s.rosters.Keys(ctx, universe)
	if err != nil {
		return models.Coverage{}, err
	}
	synced := models.Snapshot(s.store.Read(ctx)).KeysOn(asOf)

	cov := models.Coverage{
		Universe: universe,
		AsOf:     util.FormatDate(asOf),
		Total:    len(keys),
		Missing:  make([]string, 0),
	}
	for _, k := range keys {
		if _, ok := synced[k]; ok {
			cov.Synced++
		} else {
			cov.Missing = append(cov.Missing, k)
		}
	}
	return cov, nil
}

// Lookup fetches the current metrics of one ticker, cached for metric_source.cache_ttl.
// Nothing is persisted.
func (s *Screener) Lookup(ctx context.Context, key string) (models.MetricRecord, error) {
	ck := cache.Key("lookup", key)
	if s.cache != nil {
		var rec models.MetricRecord
		if err := s.cache.Get(ctx, ck, &rec); err == nil {
			return rec, nil
		}
	}

	rec, err := s.source.Fetch(ctx, key)
	if err != nil {
		return models.MetricRecord{}, err
	}
	rec.Key = key
	rec.ObservedDate = s.Today()
	if !rec.Valid() {
		return models.MetricRecord{}, fmt.Errorf("%w: %s: no price", domsvc.ErrFetch, key)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ck, rec, s.cfg.MetricSource.CacheTTL); err != nil {
			s.log.Debug("lookup cache set failed", applogger.String("ticker", key), applogger.Error(err))
		}
	}
	return rec, nil
}
