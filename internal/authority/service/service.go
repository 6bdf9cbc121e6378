// Package service implements the authority registry: the application
// pipeline, the authority lifecycle, and the directory consulted by the
// proof registry.
package service

import (
	"context"
	"log/slog"

	"healthpass/internal/accesscontrol"
	"healthpass/internal/authority/cache"
	"healthpass/internal/authority/store"
	"healthpass/internal/events"
	"healthpass/internal/platform/metrics"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/tx"
)

// Service is the authority registry.
type Service struct {
	store      store.Store
	ac         *accesscontrol.AccessControl
	serializer *tx.Serializer
	log        *slog.Logger
	metrics    *metrics.Metrics
	publisher  events.Publisher
	cache      *cache.Cache
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func New(st store.Store, ac *accesscontrol.AccessControl, serializer *tx.Serializer, opts ...Option) *Service {
	s := &Service{
		store:      st,
		ac:         ac,
		serializer: serializer,
		log:        slog.New(slog.DiscardHandler),
		publisher:  events.NewMemory(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit publishes a committed signal. Failures are logged, never propagated;
// the state change already happened.
func (s *Service) emit(ctx context.Context, signal events.Signal) {
	if err := s.publisher.Emit(ctx, signal); err != nil {
		s.log.ErrorContext(ctx, "signal emission failed", "kind", signal.Kind(), "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, identity domain.Identity) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, identity)
	}
}
