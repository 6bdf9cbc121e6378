package service

import (
	"context"
	"errors"

	"healthpass/internal/authority/models"
	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
)

// GetAuthority returns the authority record, consulting the read cache
// first. Reads are not serialized.
func (s *Service) GetAuthority(ctx context.Context, identity domain.Identity) (*models.Authority, error) {
	if cached := s.cache.Get(ctx, identity); cached != nil {
		return cached, nil
	}

	authority, err := s.store.FindAuthority(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "authority not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup authority")
	}

	s.cache.Set(ctx, authority)
	return authority, nil
}

// GetApplication returns the stored application for an applicant, processed
// or not.
func (s *Service) GetApplication(ctx context.Context, applicant domain.Identity) (*models.Application, error) {
	app, err := s.store.FindApplication(ctx, applicant)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "application not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup application")
	}
	return app, nil
}

func (s *Service) ListAuthorities(ctx context.Context) ([]*models.Authority, error) {
	return s.store.ListAuthorities(ctx)
}

func (s *Service) ListByType(ctx context.Context, typ models.AuthorityType) ([]*models.Authority, error) {
	if !typ.Valid() {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "unknown authority type %q", typ)
	}
	return s.store.ListByType(ctx, typ)
}

func (s *Service) ListByCountry(ctx context.Context, country string) ([]*models.Authority, error) {
	if country == "" {
		return nil, domainerrors.New(domainerrors.CodeValidation, "country is required")
	}
	return s.store.ListByCountry(ctx, country)
}

func (s *Service) ListPendingApplications(ctx context.Context) ([]*models.Application, error) {
	return s.store.ListPendingApplications(ctx)
}

// Stats summarizes the registry by lifecycle state.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Pending   int `json:"pending_applications"`
	Suspended int `json:"suspended"`
	Revoked   int `json:"revoked"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.Total, err = s.store.CountAuthorities(ctx); err != nil {
		return Stats{}, err
	}
	if stats.Active, err = s.store.CountByStatus(ctx, models.StatusActive); err != nil {
		return Stats{}, err
	}
	if stats.Suspended, err = s.store.CountByStatus(ctx, models.StatusSuspended); err != nil {
		return Stats{}, err
	}
	if stats.Revoked, err = s.store.CountByStatus(ctx, models.StatusRevoked); err != nil {
		return Stats{}, err
	}

	pending, err := s.store.ListPendingApplications(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Pending = len(pending)
	return stats, nil
}
