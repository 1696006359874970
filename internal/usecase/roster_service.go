package usecase

import (
	"context"
	"errors"
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

// RosterService serves universe memberships from cache, then the roster
// table, and scrapes the universe page when the table has nothing recent.
type RosterService struct {
	cfg    *config.Config
	source domsvc.RosterSource
	store  domrepo.RosterStore
	cache  cache.Service
	log    *applogger.Logger
}

func NewRosterService(cfg *config.Config, source domsvc.RosterSource, store domrepo.RosterStore, c cache.Service, l *applogger.Logger) *RosterService {
	if l == nil {
		l = applogger.Nop()
	}
	return &RosterService{cfg: cfg, source: source, store: store, cache: c, log: l}
}

func rosterCacheKey(universe string) string { return cache.Key("roster", universe) }

// Roster returns the membership of universe. When the scrape fails, stale
// rows are served; with no rows at all the roster is empty.
func (s *RosterService) Roster(ctx context.Context, universe string) (models.Roster, error) {
	if _, ok := s.cfg.Universe(universe); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUniverse, universe)
	}

	if s.cache != nil {
		var cached models.Roster
		if err := s.cache.Get(ctx, rosterCacheKey(universe), &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	rows := s.stored(ctx, universe)
	if len(rows) == 0 || s.stale(rows) {
		fresh, err := s.Refresh(ctx, universe)
		if err == nil {
			return fresh, nil
		}
		if len(rows) == 0 {
			return models.Roster{}, nil
		}
		s.log.Warn("roster refresh failed, serving stored rows",
			applogger.String("universe", universe),
			applogger.Int("rows", len(rows)),
			applogger.Error(err),
		)
	}

	s.remember(ctx, universe, rows)
	return rows, nil
}

// Keys returns the valid keys of universe in roster order.
func (s *RosterService) Keys(ctx context.Context, universe string) ([]string, error) {
	r, err := s.Roster(ctx, universe)
	if err != nil {
		return nil, err
	}
	return r.Keys(), nil
}

// Refresh scrapes universe and replaces its rows in the roster table, keeping
// the rows of other universes. An empty or failed scrape leaves the table untouched.
func (s *RosterService) Refresh(ctx context.Context, universe string) (models.Roster, error) {
	if _, ok := s.cfg.Universe(universe); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUniverse, universe)
	}

	fresh, err := s.source.FetchRoster(ctx, universe)
	if err == nil && len(fresh) == 0 {
		err = errors.New("empty roster")
	}
	if err != nil {
		return models.Roster{}, fmt.Errorf("refresh roster %s: %w", universe, err)
	}

	today := util.Today(s.cfg.Location())
	for i := range fresh {
		fresh[i].Universe = universe
		fresh[i].ObservedDate = today
	}

	all := s.store.Read(ctx)
	kept := make([]models.RosterEntry, 0, len(all)+len(fresh))
	for _, e := range all {
		if e.Universe != universe {
			kept = append(kept, e)
		}
	}
	kept = append(kept, fresh...)
	if err := s.store.Write(ctx, kept); err != nil {
		s.log.Error("roster write failed", applogger.String("universe", universe), applogger.Error(err))
		return fresh, fmt.Errorf("write roster %s: %w", universe, err)
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, rosterCacheKey(universe))
	}
	s.remember(ctx, universe, fresh)
	s.log.Info("roster refreshed",
		applogger.String("universe", universe),
		applogger.Int("rows", len(fresh)),
		applogger.Int("valid_keys", len(fresh.Keys())),
	)
	return fresh, nil
}

func (s *RosterService) stored(ctx context.Context, universe string) models.Roster {
	var out models.Roster
	for _, e := range s.store.Read(ctx) {
		if e.Universe == universe {
			out = append(out, e)
		}
	}
	return out
}

// stale reports whether the newest row is older than the refresh interval.
func (s *RosterService) stale(rows models.Roster) bool {
	interval := s.cfg.Roster.RefreshInterval
	if interval <= 0 {
		return false
	}
	var newest time.Time
	for _, e := range rows {
		if e.ObservedDate.After(newest) {
			newest = e.ObservedDate
		}
	}
	return util.Today(s.cfg.Location()).Sub(newest) > interval
}

func (s *RosterService) remember(ctx context.Context, universe string, rows models.Roster) {
	if s.cache == nil || len(rows) == 0 {
		return
	}
	if err := s.cache.Set(ctx, rosterCacheKey(universe), rows, s.cfg.Roster.CacheTTL); err != nil {
		s.log.Debug("roster cache set failed", applogger.String("universe", universe), applogger.Error(err))
	}
}
