package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	settingsDomain "peerlend-backend/internal/domain/settings"
)

// Settings are the tunables read by the matching and accountability engines.
type Settings struct {
	OfferResponseWindow time.Duration
	LockThreshold       int
	MinAccountAge       time.Duration
	BaseStrength        int
	AutoAcceptEnabled   bool
	SweepBatchSize      int
}

func Defaults() Settings {
	return Settings{
		OfferResponseWindow: 24 * time.Hour,
		LockThreshold:       2,
		MinAccountAge:       7 * 24 * time.Hour,
		BaseStrength:        5,
		AutoAcceptEnabled:   true,
		SweepBatchSize:      500,
	}
}

// Provider is how engines read settings. Implementations must be safe for
// concurrent use.
type Provider interface {
	Current(ctx context.Context) Settings
}

// Static always returns the same settings.
type Static Settings

func (s Static) Current(context.Context) Settings { return Settings(s) }

// Store overlays platform_settings rows on top of a base (defaults or
// deployment config) and caches the result for TTL.
type Store struct {
	repo settingsDomain.Repository
	base Settings
	ttl  time.Duration
	log  *slog.Logger
	now  func() time.Time

	mu       sync.RWMutex
	cached   Settings
	loadedAt time.Time
	loaded   bool
	subs     []func(Settings)
}

func NewStore(repo settingsDomain.Repository, base Settings, ttl time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{repo: repo, base: base, ttl: ttl, log: log, now: time.Now, cached: base}
}

// Current returns cached settings, reloading when the TTL elapsed. A zero TTL
// caches until Invalidate. A failed reload keeps serving the last known values.
func (s *Store) Current(ctx context.Context) Settings {
	s.mu.RLock()
	fresh := s.loaded && (s.ttl <= 0 || s.now().Sub(s.loadedAt) < s.ttl)
	cur := s.cached
	s.mu.RUnlock()
	if fresh {
		return cur
	}
	next, err := s.Reload(ctx)
	if err != nil {
		s.log.Warn("settings reload failed; serving cached values", "error", err)
		return cur
	}
	return next
}

// Reload reads every override now and notifies subscribers when values changed.
func (s *Store) Reload(ctx context.Context) (Settings, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return Settings{}, err
	}
	next := s.base
	for _, row := range rows {
		if err := apply(&next, row.Key, row.Value); err != nil {
			// a bad row must not take the engine down; keep the base value
			s.log.Warn("ignoring invalid platform setting", "key", row.Key, "value", row.Value, "error", err)
		}
	}

	s.mu.Lock()
	changed := !s.loaded || next != s.cached
	s.cached = next
	s.loadedAt = s.now()
	s.loaded = true
	subs := append([]func(Settings){}, s.subs...)
	s.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(next)
		}
	}
	return next, nil
}

// Invalidate forces the next Current call to reload.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// Subscribe registers fn to run after a reload that changed values.
func (s *Store) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Update validates and persists one override, then invalidates the cache.
func (s *Store) Update(ctx context.Context, key, value string) error {
	trial := s.base
	if err := apply(&trial, key, value); err != nil {
		return err
	}
	if err := s.repo.Put(ctx, key, strings.TrimSpace(value)); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

func apply(s *Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case settingsDomain.KeyOfferResponseWindow:
		d, err := positiveDuration(value)
		if err != nil {
			return err
		}
		s.OfferResponseWindow = d
	case settingsDomain.KeyMinAccountAge:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid duration %q", value)
		}
		s.MinAccountAge = d
	case settingsDomain.KeyLockThreshold:
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		s.LockThreshold = n
	case settingsDomain.KeyBaseStrength:
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		if n > 10 {
			return fmt.Errorf("base strength %d above 10", n)
		}
		s.BaseStrength = n
	case settingsDomain.KeyAutoAcceptEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool %q", value)
		}
		s.AutoAcceptEnabled = b
	case settingsDomain.KeySweepBatchSize:
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		s.SweepBatchSize = n
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func positiveDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func positiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid positive integer %q", v)
	}
	return n, nil
}
