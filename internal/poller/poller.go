// Package poller drives the periodic read of the appliance and publishes
// normalized, internally consistent snapshots to the rest of the bridge.
package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solarwatt-bridge/config"
	"solarwatt-bridge/internal/manager"
	"solarwatt-bridge/internal/store"
)

// Status summarizes poll health for the status endpoint and the exporter.
type Status struct {
	LastAttempt     time.Time
	LastSuccess     time.Time
	LastError       string
	LastErrorKind   manager.Kind
	LastDuration    time.Duration
	ItemCount       int
	Stale           bool
	ThingsFetchedAt time.Time
}

// Service orchestrates the polling loops. All appliance access funnels
// through fetchMu so the interval poll, the device-inventory refresh and
// on-demand fetches never interleave on the single shared session.
type Service struct {
	client *manager.Client
	cache  store.Store // nil when the warm-start cache is disabled
	cfg    config.ManagerConfig
	log    zerolog.Logger

	// notify is invoked with every freshly published snapshot. Set before
	// Run; never called concurrently with itself.
	notify func(*Snapshot)

	fetchMu sync.Mutex

	mu           sync.RWMutex
	snapshot     *Snapshot
	things       []manager.Thing
	thingsAt     time.Time
	lastAttempt  time.Time
	lastSuccess  time.Time
	lastDuration time.Duration
	lastErr      error
}

// NewService creates a poller around an authenticated client. cache may be
// nil to run without the warm-start cache.
func NewService(client *manager.Client, cache store.Store, cfg config.ManagerConfig, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		cache:  cache,
		cfg:    cfg,
		log:    log.With().Str("component", "poller").Logger(),
	}
}

// OnSnapshot registers a callback invoked after each successful poll. Must
// be called before Run.
func (s *Service) OnSnapshot(fn func(*Snapshot)) {
	s.notify = fn
}

// WarmStart restores the last persisted snapshot and inventory, marked
// stale, so the API has data to serve before the first poll completes.
// Errors are logged and swallowed; an empty cache is not an error.
func (s *Service) WarmStart(ctx context.Context) {
	if s.cache == nil {
		return
	}

	items, fetchedAt, err := s.cache.LoadItems(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Warm-start item load failed")
	} else if len(items) > 0 {
		snap := buildSnapshot(items, fetchedAt, true)
		s.mu.Lock()
		if s.snapshot == nil {
			s.snapshot = snap
		}
		s.mu.Unlock()
		s.log.Info().Int("items", len(items)).Time("fetched_at", fetchedAt).Msg("Restored cached snapshot")
	}

	things, thingsAt, err := s.cache.LoadThings(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Warm-start thing load failed")
	} else if len(things) > 0 {
		s.mu.Lock()
		if s.things == nil {
			s.things = things
			s.thingsAt = thingsAt
		}
		s.mu.Unlock()
	}
}

// Run polls until ctx is cancelled. The device inventory is refreshed on
// its own, slower cadence.
func (s *Service) Run(ctx context.Context) {
	s.log.Info().
		Dur("scan_interval", s.cfg.ScanInterval).
		Dur("things_refresh", s.cfg.ThingsRefresh).
		Msg("Starting poller")

	s.RefreshThings(ctx)
	if err := s.PollOnce(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Initial poll failed")
	}

	pollTimer := time.NewTimer(s.cfg.ScanInterval)
	defer pollTimer.Stop()
	thingsTimer := time.NewTimer(s.cfg.ThingsRefresh)
	defer thingsTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Poller shutting down")
			return
		case <-pollTimer.C:
			if err := s.PollOnce(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Poll failed")
			}
			pollTimer.Reset(s.cfg.ScanInterval)
		case <-thingsTimer.C:
			s.RefreshThings(ctx)
			thingsTimer.Reset(s.cfg.ThingsRefresh)
		}
	}
}

// PollOnce performs one full fetch-and-normalize cycle and publishes the
// resulting snapshot. On error the previous snapshot stays published.
func (s *Service) PollOnce(ctx context.Context) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	started := time.Now().UTC()
	rawItems, err := s.client.Items(ctx)
	elapsed := time.Since(started)

	s.mu.Lock()
	s.lastAttempt = started
	s.lastDuration = elapsed
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		return err
	}

	snap := buildSnapshot(rawItems, started, false)

	s.mu.Lock()
	s.snapshot = snap
	s.lastSuccess = started
	s.mu.Unlock()

	s.log.Debug().Int("items", len(snap.Items)).Dur("elapsed", elapsed).Msg("Poll complete")

	if s.cache != nil {
		if err := s.cache.ReplaceItems(ctx, started, rawItems); err != nil {
			s.log.Warn().Err(err).Msg("Snapshot cache write failed")
		}
	}
	if s.notify != nil {
		s.notify(snap)
	}
	return nil
}

// RefreshThings reloads the device inventory. Failures are logged and
// swallowed; the previous inventory stays available.
func (s *Service) RefreshThings(ctx context.Context) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	now := time.Now().UTC()
	things, err := s.client.Things(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("Thing refresh failed, keeping previous inventory")
		return
	}
	sort.Slice(things, func(i, j int) bool { return things[i].UID < things[j].UID })

	s.mu.Lock()
	s.things = things
	s.thingsAt = now
	s.mu.Unlock()

	s.log.Debug().Int("things", len(things)).Msg("Thing inventory refreshed")

	if s.cache != nil {
		if err := s.cache.ReplaceThings(ctx, now, things); err != nil {
			s.log.Warn().Err(err).Msg("Thing cache write failed")
		}
	}
}

// FetchItem reads a single item from the appliance right now, bypassing the
// snapshot. It does not touch the published snapshot.
func (s *Service) FetchItem(ctx context.Context, rawName string) (Item, error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	raw, err := s.client.ItemByName(ctx, rawName)
	if err != nil {
		return Item{}, err
	}
	return normalizeItem(raw), nil
}

// Latest returns the currently published snapshot, or nil before the first
// poll with no warm-start data.
func (s *Service) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Things returns the current device inventory and when it was fetched.
func (s *Service) Things() ([]manager.Thing, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.things, s.thingsAt
}

// Status reports poll health.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		LastAttempt:     s.lastAttempt,
		LastSuccess:     s.lastSuccess,
		LastDuration:    s.lastDuration,
		ThingsFetchedAt: s.thingsAt,
		Stale:           true,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
		st.LastErrorKind = manager.ErrKind(s.lastErr)
	}
	if s.snapshot != nil {
		st.ItemCount = len(s.snapshot.Items)
		st.Stale = s.snapshot.Stale
	}
	return st
}

// Validate confirms the configured appliance accepts the credentials and
// serves items. Used by the -validate startup flag.
func (s *Service) Validate(ctx context.Context) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	return s.client.Validate(ctx)
}

// Close releases the underlying session.
func (s *Service) Close() {
	s.client.Close()
}
