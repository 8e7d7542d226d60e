// Package payment loads payment methods and enriches them after load.
package payment

import (
	"context"

	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/event"
	"github.com/opensource-finance/shopcore/internal/feature"
)

// LoadedEvent is dispatched after payment methods were loaded.
type LoadedEvent = *event.EntityLoaded[*domain.PaymentMethod]

// DistinguishableNameSubscriber fills the distinguishable name of payment
// methods that have none. It does nothing while the flag is off.
type DistinguishableNameSubscriber struct {
	Flags domain.FeatureFlags
}

// NewDistinguishableNameSubscriber creates the subscriber.
func NewDistinguishableNameSubscriber(flags domain.FeatureFlags) *DistinguishableNameSubscriber {
	return &DistinguishableNameSubscriber{Flags: flags}
}

// OnLoaded is the event.Listener for LoadedEvent.
func (s *DistinguishableNameSubscriber) OnLoaded(ctx context.Context, ev LoadedEvent) error {
	if s.Flags == nil || !s.Flags.IsActive(ctx, feature.NextDistinguishableName) {
		return nil
	}

	for _, m := range ev.Entities {
		if m.GetTranslation("distinguishableName") == nil {
			var translated *string
			if name := m.GetTranslation("name"); name != nil {
				copied := *name
				translated = &copied
			}
			m.AddTranslated("distinguishableName", translated)
		}
		if m.DistinguishableName == nil {
			name := m.Name
			m.DistinguishableName = &name
		}
	}
	return nil
}
