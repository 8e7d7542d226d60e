// Package feature resolves feature flags from static configuration and
// runtime overrides kept in the cache.
package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/shopcore/internal/domain"
)

// NextDistinguishableName enables distinguishable payment method names.
const NextDistinguishableName = "FEATURE_NEXT_15170"

// Known lists the flags this build understands.
var Known = []string{
	NextDistinguishableName,
}

const overrideNamespace = "_features"

// Flag is the resolved state of a feature flag.
type Flag struct {
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Default  bool   `json:"default"`
	Override bool   `json:"override"`
}

// Service implements domain.FeatureFlags.
type Service struct {
	static map[string]bool
	known  map[string]struct{}
	cache  domain.Cache
	ttl    time.Duration
}

// NewService creates a flag service. cache may be nil, in which case only
// the static configuration is used and SetActive fails.
func NewService(cfg domain.FeatureConfig, cache domain.Cache) *Service {
	s := &Service{
		static: make(map[string]bool),
		known:  make(map[string]struct{}),
		cache:  cache,
		ttl:    cfg.OverrideTTL,
	}
	for _, name := range Known {
		s.known[Normalize(name)] = struct{}{}
	}
	for _, name := range cfg.Active {
		name = Normalize(name)
		if name == "" {
			continue
		}
		s.static[name] = true
		s.known[name] = struct{}{}
	}
	return s
}

// Normalize canonicalises a flag name.
func Normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// IsActive reports whether a flag is on. A runtime override wins over the
// static configuration. Cache failures fall back to the static value.
func (s *Service) IsActive(ctx context.Context, name string) bool {
	name = Normalize(name)
	if active, ok := s.override(ctx, name); ok {
		return active
	}
	return s.static[name]
}

// SetActive stores a runtime override.
func (s *Service) SetActive(ctx context.Context, name string, active bool) error {
	name = Normalize(name)
	if name == "" {
		return fmt.Errorf("feature name is required")
	}
	if s.cache == nil {
		return fmt.Errorf("feature overrides require a cache")
	}

	value := []byte("0")
	if active {
		value = []byte("1")
	}
	if err := s.cache.Set(ctx, overrideNamespace, name, value, s.ttl); err != nil {
		return fmt.Errorf("failed to store override for %s: %w", name, err)
	}

	slog.Info("feature flag toggled", "feature", name, "active", active)
	return nil
}

// Reset removes a runtime override.
func (s *Service) Reset(ctx context.Context, name string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, overrideNamespace, Normalize(name))
}

// List returns the resolved state of every known flag, sorted by name.
func (s *Service) List(ctx context.Context) []Flag {
	names := make([]string, 0, len(s.known))
	for name := range s.known {
		names = append(names, name)
	}
	sort.Strings(names)

	flags := make([]Flag, 0, len(names))
	for _, name := range names {
		f := Flag{Name: name, Default: s.static[name], Active: s.static[name]}
		if active, ok := s.override(ctx, name); ok {
			f.Active = active
			f.Override = true
		}
		flags = append(flags, f)
	}
	return flags
}

func (s *Service) override(ctx context.Context, name string) (bool, bool) {
	if s.cache == nil {
		return false, false
	}
	val, err := s.cache.Get(ctx, overrideNamespace, name)
	if err != nil {
		slog.Warn("feature override lookup failed",
			"feature", name,
			"error", err,
		)
		return false, false
	}
	if val == nil {
		return false, false
	}
	return string(val) == "1", true
}
