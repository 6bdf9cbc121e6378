package service

import (
	"context"
	"errors"

	"healthpass/internal/accesscontrol"
	"healthpass/internal/authority/models"
	"healthpass/internal/events"
	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/requestcontext"
)

// ApplicationRequest carries the fields of a new authority application.
type ApplicationRequest struct {
	Name                 string
	Type                 models.AuthorityType
	Country              string
	Region               string
	PublicKey            []byte
	CertificateReference string
	ContactInfo          string
	Accreditations       []string
}

// SubmitApplication files an application under the caller's identity. The
// name must not collide with a registered authority or a pending
// application. Any authenticated caller may apply.
func (s *Service) SubmitApplication(ctx context.Context, caller domain.Identity, req ApplicationRequest) (*models.Application, error) {
	if err := s.ac.RequireUnpaused(); err != nil {
		return nil, err
	}

	app, err := models.NewApplication(caller, req.Name, req.Type, req.Country, req.Region,
		req.PublicKey, req.CertificateReference, req.ContactInfo, req.Accreditations,
		requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindAuthority(ctx, caller); err == nil {
			return domainerrors.New(domainerrors.CodeConflict, "identity is already a registered authority")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup authority")
		}

		taken, err := s.store.NameTaken(ctx, req.Name)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "check name availability")
		}
		if taken {
			return domainerrors.Newf(domainerrors.CodeConflict, "authority name %q is taken", req.Name)
		}

		if err := s.store.CreateApplication(ctx, app); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return domainerrors.New(domainerrors.CodeConflict, "a pending application already exists for this identity")
			}
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "store application")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ApplicationsSubmitted.Inc()
	}
	s.log.InfoContext(ctx, "application submitted", "applicant", caller, "name", req.Name)
	s.emit(ctx, events.ApplicationSubmitted{
		Applicant: caller,
		Name:      app.Name,
		Type:      app.Type,
		AppliedAt: app.AppliedAt,
	})
	return app, nil
}

// ApproveApplication registers the applicant as an Active authority.
// Registrar or admin only.
func (s *Service) ApproveApplication(ctx context.Context, caller, applicant domain.Identity) (*models.Authority, error) {
	if err := s.ac.RequireUnpaused(); err != nil {
		return nil, err
	}
	if err := s.ac.RequireRole(caller, accesscontrol.RoleRegistrar); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var authority *models.Authority

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		app, err := s.store.FindApplication(ctx, applicant)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return domainerrors.New(domainerrors.CodeNotFound, "application not found")
			}
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "lookup application")
		}
		if app.Processed {
			return domainerrors.New(domainerrors.CodeConflict, "application already processed")
		}

		authority = app.Approve(now)
		if err := s.store.CreateAuthority(ctx, authority); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return domainerrors.New(domainerrors.CodeConflict, "identity is already a registered authority")
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return domainerrors.Newf(domainerrors.CodeConflict, "authority name %q is taken", app.Name)
			}
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "register authority")
		}

		return s.store.ExecuteApplication(ctx, applicant,
			func(a *models.Application) error { return nil },
			func(a *models.Application) error {
				a.Processed = true
				return nil
			})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AuthoritiesRegistered.Inc()
	}
	s.log.InfoContext(ctx, "application approved",
		"applicant", applicant, "approved_by", caller, "name", authority.Name)
	s.emit(ctx, events.AuthorityRegistered{
		Identity:     authority.Identity,
		Name:         authority.Name,
		Type:         authority.Type,
		ApprovedBy:   caller,
		RegisteredAt: authority.RegisteredAt,
	})
	return authority, nil
}

// RejectApplication marks the application processed with a reason. The
// applicant may apply again later. Registrar or admin only.
func (s *Service) RejectApplication(ctx context.Context, caller, applicant domain.Identity, reason string) error {
	if err := s.ac.RequireUnpaused(); err != nil {
		return err
	}
	if err := s.ac.RequireRole(caller, accesscontrol.RoleRegistrar); err != nil {
		return err
	}
	if reason == "" {
		return domainerrors.New(domainerrors.CodeValidation, "rejection reason is required")
	}

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		err := s.store.ExecuteApplication(ctx, applicant,
			func(app *models.Application) error {
				if app.Processed {
					return domainerrors.New(domainerrors.CodeConflict, "application already processed")
				}
				return nil
			},
			func(app *models.Application) error {
				app.Processed = true
				app.RejectionReason = reason
				return nil
			})
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "application not found")
		}
		return err
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ApplicationsRejected.Inc()
	}
	s.log.InfoContext(ctx, "application rejected", "applicant", applicant, "rejected_by", caller)
	s.emit(ctx, events.ApplicationRejected{
		Applicant:  applicant,
		Reason:     reason,
		RejectedBy: caller,
		RejectedAt: requestcontext.Now(ctx),
	})
	return nil
}

// UpdateStatus sets the authority to any valid status value. Transitions are
// deliberately unrestricted so a registrar can reverse a mistaken revocation.
// Requires the registrar role; admins pass any role check.
func (s *Service) UpdateStatus(ctx context.Context, caller, identity domain.Identity, next models.Status) error {
	if err := s.ac.RequireUnpaused(); err != nil {
		return err
	}
	if err := s.ac.RequireRole(caller, accesscontrol.RoleRegistrar); err != nil {
		return err
	}
	if !next.Valid() {
		return domainerrors.Newf(domainerrors.CodeValidation, "unknown status %q", next)
	}

	var previous models.Status
	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		err := s.store.Execute(ctx, identity,
			func(a *models.Authority) error {
				previous = a.Status
				return nil
			},
			func(a *models.Authority) error {
				a.Status = next
				a.LastUpdated = requestcontext.Now(ctx)
				return nil
			})
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "authority not found")
		}
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, identity)
	if s.metrics != nil {
		s.metrics.StatusChanges.Inc()
	}
	s.log.InfoContext(ctx, "authority status changed",
		"identity", identity, "from", previous, "to", next, "changed_by", caller)
	s.emit(ctx, events.AuthorityStatusChanged{
		Identity:  identity,
		From:      previous,
		To:        next,
		ChangedBy: caller,
		ChangedAt: requestcontext.Now(ctx),
	})
	return nil
}

// UpdateContactInfo lets an authority maintain its own contact details; an
// admin may update any authority's.
func (s *Service) UpdateContactInfo(ctx context.Context, caller, identity domain.Identity, contactInfo string) error {
	if err := s.ac.RequireUnpaused(); err != nil {
		return err
	}
	if caller != identity && !s.ac.IsAdmin(caller) {
		return domainerrors.New(domainerrors.CodeForbidden, "only the authority itself or an admin may update contact info")
	}

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		err := s.store.Execute(ctx, identity,
			func(a *models.Authority) error { return nil },
			func(a *models.Authority) error {
				a.ContactInfo = contactInfo
				a.LastUpdated = requestcontext.Now(ctx)
				return nil
			})
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "authority not found")
		}
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, identity)
	return nil
}

// UpdateCertificate replaces the authority's certificate reference. Same
// authorization rule as contact updates.
func (s *Service) UpdateCertificate(ctx context.Context, caller, identity domain.Identity, certRef string) error {
	if err := s.ac.RequireUnpaused(); err != nil {
		return err
	}
	if caller != identity && !s.ac.IsAdmin(caller) {
		return domainerrors.New(domainerrors.CodeForbidden, "only the authority itself or an admin may update the certificate")
	}
	if certRef == "" {
		return domainerrors.New(domainerrors.CodeValidation, "certificate reference is required")
	}

	err := s.serializer.RunInTx(ctx, func(ctx context.Context) error {
		err := s.store.Execute(ctx, identity,
			func(a *models.Authority) error { return nil },
			func(a *models.Authority) error {
				a.CertificateReference = certRef
				a.LastUpdated = requestcontext.Now(ctx)
				return nil
			})
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "authority not found")
		}
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, identity)
	return nil
}

// The ...InTx methods below are the directory surface the proof registry
// uses. They must only be called from inside a RunInTx critical section;
// they take no lock themselves.

// IsActiveInTx reports whether identity is a registered, Active authority.
func (s *Service) IsActiveInTx(ctx context.Context, identity domain.Identity) (bool, error) {
	authority, err := s.store.FindAuthority(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return authority.IsActive(), nil
}

// RecordIssuanceInTx increments the authority's issued-records counter.
func (s *Service) RecordIssuanceInTx(ctx context.Context, identity domain.Identity) error {
	err := s.store.Execute(ctx, identity,
		func(a *models.Authority) error { return nil },
		func(a *models.Authority) error {
			a.TotalRecordsIssued++
			a.LastUpdated = requestcontext.Now(ctx)
			return nil
		})
	if err != nil {
		return err
	}
	s.invalidate(ctx, identity)
	return nil
}

// RecordRevocationInTx increments the authority's revoked-records counter.
func (s *Service) RecordRevocationInTx(ctx context.Context, identity domain.Identity) error {
	err := s.store.Execute(ctx, identity,
		func(a *models.Authority) error { return nil },
		func(a *models.Authority) error {
			a.TotalRecordsRevoked++
			a.LastUpdated = requestcontext.Now(ctx)
			return nil
		})
	if err != nil {
		return err
	}
	s.invalidate(ctx, identity)
	return nil
}

// FlagRecordRevokedInTx marks a health record hash revoked under identity.
func (s *Service) FlagRecordRevokedInTx(ctx context.Context, identity domain.Identity, recordHash domain.Hash) error {
	return s.store.FlagRecordRevoked(ctx, identity, recordHash)
}

// IsRecordRevokedInTx reports whether identity has revoked recordHash.
func (s *Service) IsRecordRevokedInTx(ctx context.Context, identity domain.Identity, recordHash domain.Hash) (bool, error) {
	return s.store.IsRecordRevoked(ctx, identity, recordHash)
}

// CountAuthorities returns the total number of registered authorities.
func (s *Service) CountAuthorities(ctx context.Context) (int, error) {
	return s.store.CountAuthorities(ctx)
}
