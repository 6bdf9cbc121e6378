// Package service implements the proof registry: proof submission,
// verification, and revocation, bound to the authority registry through the
// directory interface.
package service

import (
	"context"
	"log/slog"

	"healthpass/internal/accesscontrol"
	"healthpass/internal/events"
	"healthpass/internal/platform/metrics"
	"healthpass/internal/proof/store"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/tx"
)

// AuthorityDirectory is the view of the authority registry the proof
// registry depends on. All methods run inside an already-held transaction;
// implementations must not serialize again.
type AuthorityDirectory interface {
	IsActiveInTx(ctx context.Context, identity domain.Identity) (bool, error)
	RecordIssuanceInTx(ctx context.Context, identity domain.Identity) error
	RecordRevocationInTx(ctx context.Context, identity domain.Identity) error
	FlagRecordRevokedInTx(ctx context.Context, identity domain.Identity, recordHash domain.Hash) error
	IsRecordRevokedInTx(ctx context.Context, identity domain.Identity, recordHash domain.Hash) (bool, error)
	CountAuthorities(ctx context.Context) (int, error)
}

// Service is the proof registry.
type Service struct {
	store       store.Store
	authorities AuthorityDirectory
	ac          *accesscontrol.AccessControl
	serializer  *tx.Serializer
	log         *slog.Logger
	metrics     *metrics.Metrics
	publisher   events.Publisher
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

// New wires the proof registry. The serializer must be the same instance
// the authority registry uses; cross-registry mutations rely on it.
func New(st store.Store, authorities AuthorityDirectory, ac *accesscontrol.AccessControl, serializer *tx.Serializer, opts ...Option) *Service {
	s := &Service{
		store:       st,
		authorities: authorities,
		ac:          ac,
		serializer:  serializer,
		log:         slog.New(slog.DiscardHandler),
		publisher:   events.NewMemory(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, signal events.Signal) {
	if err := s.publisher.Emit(ctx, signal); err != nil {
		s.log.ErrorContext(ctx, "signal emission failed", "kind", signal.Kind(), "error", err)
	}
}
