// Package store persists authority applications, registered authorities,
// and per-authority revoked record hashes.
package store

import (
	"context"

	"healthpass/internal/authority/models"
	"healthpass/pkg/domain"
)

// Store is the persistence contract for the authority registry.
//
// Error conventions follow pkg/platform/sentinel:
//   - ErrNotFound when the requested entity does not exist
//   - ErrConflict when an identity is already registered
//   - ErrAlreadyUsed when a name or live application slot is taken
type Store interface {
	// CreateApplication stores a pending application. Returns
	// sentinel.ErrAlreadyUsed when the applicant already has an
	// unprocessed application.
	CreateApplication(ctx context.Context, app *models.Application) error

	FindApplication(ctx context.Context, applicant domain.Identity) (*models.Application, error)

	// ExecuteApplication loads the application, runs validate on a
	// snapshot, and persists the result of mutate. Nothing is written
	// when validate fails.
	ExecuteApplication(ctx context.Context, applicant domain.Identity,
		validate func(*models.Application) error,
		mutate func(*models.Application) error) error

	ListPendingApplications(ctx context.Context) ([]*models.Application, error)

	// CreateAuthority registers an authority. Returns sentinel.ErrConflict
	// when the identity is already registered and sentinel.ErrAlreadyUsed
	// when the name is taken.
	CreateAuthority(ctx context.Context, authority *models.Authority) error

	FindAuthority(ctx context.Context, identity domain.Identity) (*models.Authority, error)

	FindByName(ctx context.Context, name string) (*models.Authority, error)

	// Execute loads the authority, runs validate on a snapshot, and
	// persists the result of mutate. Nothing is written when validate
	// fails.
	Execute(ctx context.Context, identity domain.Identity,
		validate func(*models.Authority) error,
		mutate func(*models.Authority) error) error

	ListAuthorities(ctx context.Context) ([]*models.Authority, error)
	ListByType(ctx context.Context, typ models.AuthorityType) ([]*models.Authority, error)
	ListByCountry(ctx context.Context, country string) ([]*models.Authority, error)

	CountAuthorities(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.Status) (int, error)

	// NameTaken reports whether name belongs to a registered authority or
	// to a pending application. Matching is case-insensitive.
	NameTaken(ctx context.Context, name string) (bool, error)

	// FlagRecordRevoked marks recordHash revoked under the given
	// authority. Flagging the same pair twice is a no-op.
	FlagRecordRevoked(ctx context.Context, authority domain.Identity, recordHash domain.Hash) error

	IsRecordRevoked(ctx context.Context, authority domain.Identity, recordHash domain.Hash) (bool, error)
}
