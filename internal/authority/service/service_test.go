package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthpass/internal/accesscontrol"
	"healthpass/internal/authority/models"
	"healthpass/internal/authority/store"
	"healthpass/internal/events"
	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/platform/tx"
	"healthpass/pkg/requestcontext"
)

const (
	adminID     = domain.Identity("did:health:admin")
	registrarID = domain.Identity("did:health:registrar")
	hospitalID  = domain.Identity("did:health:hospital")
	outsiderID  = domain.Identity("did:health:outsider")
)

type AuthorityServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	ac        *accesscontrol.AccessControl
	store     *store.Memory
	publisher *events.Memory
	service   *Service
}

func TestAuthorityServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthorityServiceSuite))
}

func (s *AuthorityServiceSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ac = accesscontrol.New(adminID)
	s.Require().NoError(s.ac.Grant(adminID, registrarID, accesscontrol.RoleRegistrar))
	s.store = store.NewMemory()
	s.publisher = events.NewMemory()
	s.service = New(s.store, s.ac, tx.NewSerializer(), WithPublisher(s.publisher))
}

func (s *AuthorityServiceSuite) request(name string) ApplicationRequest {
	return ApplicationRequest{
		Name:      name,
		Type:      models.TypeHospital,
		Country:   "DE",
		PublicKey: bytes.Repeat([]byte{0x02}, domain.PublicKeySize),
	}
}

func (s *AuthorityServiceSuite) submitAndApprove(applicant domain.Identity, name string) *models.Authority {
	_, err := s.service.SubmitApplication(s.ctx, applicant, s.request(name))
	s.Require().NoError(err)
	authority, err := s.service.ApproveApplication(s.ctx, registrarID, applicant)
	s.Require().NoError(err)
	return authority
}

func (s *AuthorityServiceSuite) TestApplicationApprovalFlow() {
	app, err := s.service.SubmitApplication(s.ctx, hospitalID, s.request("City Hospital"))
	s.Require().NoError(err)
	s.Equal(hospitalID, app.Applicant)
	s.False(app.Processed)

	authority, err := s.service.ApproveApplication(s.ctx, registrarID, hospitalID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, authority.Status)
	s.Equal(s.now, authority.RegisteredAt)
	s.Zero(authority.TotalRecordsIssued)
	s.Zero(authority.TotalRecordsRevoked)

	stored, err := s.service.GetApplication(s.ctx, hospitalID)
	s.Require().NoError(err)
	s.True(stored.Processed)

	s.Len(s.publisher.ByKind(events.KindApplicationSubmitted), 1)
	s.Len(s.publisher.ByKind(events.KindAuthorityRegistered), 1)
}

func (s *AuthorityServiceSuite) TestApprovalRequiresRegistrarRole() {
	_, err := s.service.SubmitApplication(s.ctx, hospitalID, s.request("City Hospital"))
	s.Require().NoError(err)

	_, err = s.service.ApproveApplication(s.ctx, outsiderID, hospitalID)
	s.True(domainerrors.HasCode(err, domainerrors.CodeForbidden))

	// Admin bypasses the registrar requirement.
	_, err = s.service.ApproveApplication(s.ctx, adminID, hospitalID)
	s.NoError(err)
}

func (s *AuthorityServiceSuite) TestNameCollisionWithPendingApplication() {
	_, err := s.service.SubmitApplication(s.ctx, hospitalID, s.request("City Hospital"))
	s.Require().NoError(err)

	// Same name, different applicant, before approval.
	_, err = s.service.SubmitApplication(s.ctx, outsiderID, s.request("city hospital"))
	s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))
}

func (s *AuthorityServiceSuite) TestNameCollisionWithRegisteredAuthority() {
	s.submitAndApprove(hospitalID, "City Hospital")

	_, err := s.service.SubmitApplication(s.ctx, outsiderID, s.request("City Hospital"))
	s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))
}

func (s *AuthorityServiceSuite) TestRegisteredAuthorityCannotReapply() {
	s.submitAndApprove(hospitalID, "City Hospital")

	_, err := s.service.SubmitApplication(s.ctx, hospitalID, s.request("Second Hospital"))
	s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))
}

func (s *AuthorityServiceSuite) TestRejectThenReapply() {
	_, err := s.service.SubmitApplication(s.ctx, hospitalID, s.request("City Hospital"))
	s.Require().NoError(err)

	err = s.service.RejectApplication(s.ctx, registrarID, hospitalID, "incomplete accreditation")
	s.Require().NoError(err)

	stored, err := s.service.GetApplication(s.ctx, hospitalID)
	s.Require().NoError(err)
	s.True(stored.Processed)
	s.Equal("incomplete accreditation", stored.RejectionReason)

	// Approving a processed application fails.
	_, err = s.service.ApproveApplication(s.ctx, registrarID, hospitalID)
	s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))

	// The applicant may file a fresh application.
	_, err = s.service.SubmitApplication(s.ctx, hospitalID, s.request("City Hospital"))
	s.NoError(err)

	s.Len(s.publisher.ByKind(events.KindApplicationRejected), 1)
}

func (s *AuthorityServiceSuite) TestRejectRequiresReason() {
	_, err := s.service.SubmitApplication(s.ctx, hospitalID, s.request("City Hospital"))
	s.Require().NoError(err)

	err = s.service.RejectApplication(s.ctx, registrarID, hospitalID, "")
	s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
}

func (s *AuthorityServiceSuite) TestUpdateStatusIsUnrestricted() {
	s.submitAndApprove(hospitalID, "City Hospital")

	// Active -> Revoked -> Active: an admin can undo a revocation.
	s.Require().NoError(s.service.UpdateStatus(s.ctx, adminID, hospitalID, models.StatusRevoked))
	s.Require().NoError(s.service.UpdateStatus(s.ctx, adminID, hospitalID, models.StatusActive))

	authority, err := s.service.GetAuthority(s.ctx, hospitalID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, authority.Status)

	s.Len(s.publisher.ByKind(events.KindAuthorityStatusChanged), 2)
}

func (s *AuthorityServiceSuite) TestUpdateStatusRequiresRegistrar() {
	s.submitAndApprove(hospitalID, "City Hospital")

	// Registrars manage the authority lifecycle end to end, suspension included.
	s.Require().NoError(s.service.UpdateStatus(s.ctx, registrarID, hospitalID, models.StatusSuspended))

	authority, err := s.service.GetAuthority(s.ctx, hospitalID)
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, authority.Status)

	err = s.service.UpdateStatus(s.ctx, outsiderID, hospitalID, models.StatusActive)
	s.True(domainerrors.HasCode(err, domainerrors.CodeForbidden))
}

func (s *AuthorityServiceSuite) TestUpdateStatusUnknownAuthority() {
	err := s.service.UpdateStatus(s.ctx, adminID, "did:health:ghost", models.StatusSuspended)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *AuthorityServiceSuite) TestUpdateContactInfo() {
	s.submitAndApprove(hospitalID, "City Hospital")

	// The authority itself.
	s.Require().NoError(s.service.UpdateContactInfo(s.ctx, hospitalID, hospitalID, "new@city.example"))

	// An admin.
	s.Require().NoError(s.service.UpdateContactInfo(s.ctx, adminID, hospitalID, "admin@city.example"))

	// Anyone else is refused.
	err := s.service.UpdateContactInfo(s.ctx, outsiderID, hospitalID, "spoof@evil.example")
	s.True(domainerrors.HasCode(err, domainerrors.CodeForbidden))

	authority, err := s.service.GetAuthority(s.ctx, hospitalID)
	s.Require().NoError(err)
	s.Equal("admin@city.example", authority.ContactInfo)
}

func (s *AuthorityServiceSuite) TestUpdateCertificate() {
	s.submitAndApprove(hospitalID, "City Hospital")

	err := s.service.UpdateCertificate(s.ctx, outsiderID, hospitalID, "cert-2")
	s.True(domainerrors.HasCode(err, domainerrors.CodeForbidden))

	err = s.service.UpdateCertificate(s.ctx, hospitalID, hospitalID, "")
	s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))

	s.Require().NoError(s.service.UpdateCertificate(s.ctx, hospitalID, hospitalID, "cert-2"))

	authority, err := s.service.GetAuthority(s.ctx, hospitalID)
	s.Require().NoError(err)
	s.Equal("cert-2", authority.CertificateReference)
}

func (s *AuthorityServiceSuite) TestPauseBlocksMutations() {
	s.Require().NoError(s.ac.Pause(adminID))

	_, err := s.service.SubmitApplication(s.ctx, hospitalID, s.request("City Hospital"))
	s.True(domainerrors.HasCode(err, domainerrors.CodeUnavailable))

	_, err = s.service.ApproveApplication(s.ctx, registrarID, hospitalID)
	s.True(domainerrors.HasCode(err, domainerrors.CodeUnavailable))

	err = s.service.UpdateStatus(s.ctx, adminID, hospitalID, models.StatusSuspended)
	s.True(domainerrors.HasCode(err, domainerrors.CodeUnavailable))
}

func (s *AuthorityServiceSuite) TestDirectoryMethods() {
	s.submitAndApprove(hospitalID, "City Hospital")
	ctx := s.ctx

	active, err := s.service.IsActiveInTx(ctx, hospitalID)
	s.Require().NoError(err)
	s.True(active)

	active, err = s.service.IsActiveInTx(ctx, outsiderID)
	s.Require().NoError(err)
	s.False(active)

	s.Require().NoError(s.service.RecordIssuanceInTx(ctx, hospitalID))
	s.Require().NoError(s.service.RecordIssuanceInTx(ctx, hospitalID))
	s.Require().NoError(s.service.RecordRevocationInTx(ctx, hospitalID))

	authority, err := s.service.GetAuthority(ctx, hospitalID)
	s.Require().NoError(err)
	s.Equal(uint64(2), authority.TotalRecordsIssued)
	s.Equal(uint64(1), authority.TotalRecordsRevoked)

	hash := domain.Hash("0x2222222222222222222222222222222222222222222222222222222222222222")
	revoked, err := s.service.IsRecordRevokedInTx(ctx, hospitalID, hash)
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.service.FlagRecordRevokedInTx(ctx, hospitalID, hash))
	revoked, err = s.service.IsRecordRevokedInTx(ctx, hospitalID, hash)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *AuthorityServiceSuite) TestStatsAndFilters() {
	s.submitAndApprove(hospitalID, "City Hospital")

	labID := domain.Identity("did:health:lab")
	req := s.request("Metro Lab")
	req.Type = models.TypeLaboratory
	req.Country = "FR"
	_, err := s.service.SubmitApplication(s.ctx, labID, req)
	s.Require().NoError(err)
	_, err = s.service.ApproveApplication(s.ctx, registrarID, labID)
	s.Require().NoError(err)

	s.Require().NoError(s.service.UpdateStatus(s.ctx, adminID, labID, models.StatusSuspended))

	_, err = s.service.SubmitApplication(s.ctx, outsiderID, s.request("Pending Clinic"))
	s.Require().NoError(err)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(1, stats.Active)
	s.Equal(1, stats.Suspended)
	s.Equal(0, stats.Revoked)
	s.Equal(1, stats.Pending)

	labs, err := s.service.ListByType(s.ctx, models.TypeLaboratory)
	s.Require().NoError(err)
	s.Len(labs, 1)

	french, err := s.service.ListByCountry(s.ctx, "FR")
	s.Require().NoError(err)
	s.Len(french, 1)
}
