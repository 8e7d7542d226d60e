package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/event"
	"github.com/opensource-finance/shopcore/internal/feature"
)

type staticFlags map[string]bool

func (f staticFlags) IsActive(ctx context.Context, name string) bool { return f[name] }

func strPtr(s string) *string { return &s }

func method(id, name string, distinguishable *string) *domain.PaymentMethod {
	m := &domain.PaymentMethod{ID: id, Name: name, DistinguishableName: distinguishable}
	m.AddTranslated("name", strPtr(name))
	m.AddTranslated("distinguishableName", distinguishable)
	return m
}

func loaded(methods ...*domain.PaymentMethod) LoadedEvent {
	return &event.EntityLoaded[*domain.PaymentMethod]{Entity: "payment_method", Entities: methods}
}

func TestDistinguishableNameSubscriber(t *testing.T) {
	ctx := context.Background()
	on := staticFlags{feature.NextDistinguishableName: true}

	t.Run("NoOpWhenFlagInactive", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(staticFlags{})
		m := method("pm-1", "Invoice", nil)

		if err := s.OnLoaded(ctx, loaded(m)); err != nil {
			t.Fatalf("OnLoaded failed: %v", err)
		}
		if m.DistinguishableName != nil {
			t.Error("expected scalar field to stay unset")
		}
		if m.GetTranslation("distinguishableName") != nil {
			t.Error("expected translated field to stay unset")
		}
	})

	t.Run("NoOpWithoutFlagService", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(nil)
		m := method("pm-1", "Invoice", nil)
		_ = s.OnLoaded(ctx, loaded(m))
		if m.DistinguishableName != nil {
			t.Error("expected scalar field to stay unset")
		}
	})

	t.Run("CopiesWhenAbsent", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(on)
		m := method("pm-1", "Invoice", nil)

		if err := s.OnLoaded(ctx, loaded(m)); err != nil {
			t.Fatalf("OnLoaded failed: %v", err)
		}
		if m.DistinguishableName == nil || *m.DistinguishableName != "Invoice" {
			t.Errorf("expected scalar 'Invoice', got %v", m.DistinguishableName)
		}
		if got := m.GetTranslation("distinguishableName"); got == nil || *got != "Invoice" {
			t.Errorf("expected translated 'Invoice', got %v", got)
		}
	})

	t.Run("CopiedTranslationIsDetached", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(on)
		m := method("pm-1", "Invoice", nil)

		if err := s.OnLoaded(ctx, loaded(m)); err != nil {
			t.Fatalf("OnLoaded failed: %v", err)
		}
		if m.GetTranslation("distinguishableName") == m.GetTranslation("name") {
			t.Fatal("expected distinct pointers for name and distinguishableName")
		}

		*m.GetTranslation("name") = "Rechnung"
		if got := *m.GetTranslation("distinguishableName"); got != "Invoice" {
			t.Errorf("expected distinguishableName to stay 'Invoice', got %s", got)
		}
	})

	t.Run("MissingNameTranslation", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(on)
		m := &domain.PaymentMethod{ID: "pm-1", Name: "Invoice"}

		if err := s.OnLoaded(ctx, loaded(m)); err != nil {
			t.Fatalf("OnLoaded failed: %v", err)
		}
		if m.GetTranslation("distinguishableName") != nil {
			t.Error("expected translated value to stay unset without a name translation")
		}
		if m.DistinguishableName == nil || *m.DistinguishableName != "Invoice" {
			t.Errorf("expected scalar 'Invoice', got %v", m.DistinguishableName)
		}
	})

	t.Run("KeepsExistingValues", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(on)
		m := method("pm-1", "Invoice", strPtr("Invoice | Shop A"))

		for i := 0; i < 2; i++ {
			if err := s.OnLoaded(ctx, loaded(m)); err != nil {
				t.Fatalf("OnLoaded failed: %v", err)
			}
		}
		if *m.DistinguishableName != "Invoice | Shop A" {
			t.Errorf("scalar overwritten: %s", *m.DistinguishableName)
		}
		if got := m.GetTranslation("distinguishableName"); *got != "Invoice | Shop A" {
			t.Errorf("translation overwritten: %s", *got)
		}
	})

	t.Run("FieldsAreIndependent", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(on)
		m := method("pm-1", "Invoice", nil)
		m.AddTranslated("distinguishableName", strPtr("Rechnung"))

		_ = s.OnLoaded(ctx, loaded(m))

		if *m.GetTranslation("distinguishableName") != "Rechnung" {
			t.Error("expected translated value to be kept")
		}
		if *m.DistinguishableName != "Invoice" {
			t.Error("expected scalar value to be filled from name")
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		s := NewDistinguishableNameSubscriber(on)
		if err := s.OnLoaded(ctx, loaded()); err != nil {
			t.Errorf("OnLoaded failed: %v", err)
		}
	})
}

type stubSearcher struct {
	result *criteria.SearchResult
	err    error
	got    *criteria.Criteria
}

func (s *stubSearcher) Search(ctx context.Context, entity string, c *criteria.Criteria) (*criteria.SearchResult, error) {
	s.got = c
	return s.result, s.err
}

type stubReader map[string]*domain.PaymentMethod

func (r stubReader) GetPaymentMethods(ctx context.Context, ids []string) ([]*domain.PaymentMethod, error) {
	var out []*domain.PaymentMethod
	for _, id := range ids {
		if m, ok := r[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	reader := stubReader{
		"pm-1": method("pm-1", "Invoice", nil),
		"pm-2": method("pm-2", "Cash", nil),
	}

	t.Run("RunsLoadedChain", func(t *testing.T) {
		searcher := &stubSearcher{result: &criteria.SearchResult{Total: 2, IDs: []string{"pm-2", "pm-1"}}}
		chain := event.NewChain[LoadedEvent](
			NewDistinguishableNameSubscriber(staticFlags{feature.NextDistinguishableName: true}).OnLoaded,
		)

		result, err := NewLoader(searcher, reader, chain).Load(ctx, ActiveCriteria())
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if result.Total != 2 || len(result.Elements) != 2 {
			t.Fatalf("unexpected result: %+v", result)
		}
		if result.Elements[0].ID != "pm-2" {
			t.Errorf("expected search order, got %s first", result.Elements[0].ID)
		}
		if result.Elements[0].DistinguishableName == nil {
			t.Error("expected enrichment before return")
		}
	})

	t.Run("ListenerErrorAborts", func(t *testing.T) {
		searcher := &stubSearcher{result: &criteria.SearchResult{IDs: []string{"pm-1"}}}
		boom := errors.New("boom")
		chain := event.NewChain[LoadedEvent](func(ctx context.Context, ev LoadedEvent) error { return boom })

		_, err := NewLoader(searcher, reader, chain).Load(ctx, criteria.New())
		if !errors.Is(err, boom) {
			t.Errorf("expected listener error, got %v", err)
		}
	})

	t.Run("SearchError", func(t *testing.T) {
		searcher := &stubSearcher{err: errors.New("db down")}
		if _, err := NewLoader(searcher, reader, nil).Load(ctx, criteria.New()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("EmptyResult", func(t *testing.T) {
		searcher := &stubSearcher{result: &criteria.SearchResult{}}
		result, err := NewLoader(searcher, reader, nil).Load(ctx, criteria.New())
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if result.Elements == nil || len(result.Elements) != 0 {
			t.Errorf("expected empty slice, got %v", result.Elements)
		}
	})

	t.Run("ActiveCriteria", func(t *testing.T) {
		c := ActiveCriteria()
		if len(c.Filters) != 1 || len(c.Sortings) != 1 {
			t.Fatalf("unexpected criteria: %+v", c)
		}
		if c.Sortings[0].Field != "position" {
			t.Errorf("expected sorting by position, got %s", c.Sortings[0].Field)
		}
	})
}
