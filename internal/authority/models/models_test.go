package models

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x02}, domain.PublicKeySize)
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusRevoked, true},
		{StatusPending, StatusSuspended, false},
		{StatusActive, StatusSuspended, true},
		{StatusActive, StatusRevoked, true},
		{StatusActive, StatusPending, false},
		{StatusSuspended, StatusActive, true},
		{StatusSuspended, StatusRevoked, true},
		{StatusRevoked, StatusActive, false},
		{StatusRevoked, StatusSuspended, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNewApplicationValidation(t *testing.T) {
	now := time.Now()

	_, err := NewApplication("", "City Hospital", TypeHospital, "DE", "", testKey(), "", "", nil, now)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeValidation))

	_, err = NewApplication("did:health:hospital", "", TypeHospital, "DE", "", testKey(), "", "", nil, now)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeValidation))

	_, err = NewApplication("did:health:hospital", "City Hospital", AuthorityType("BAKERY"), "DE", "", testKey(), "", "", nil, now)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeValidation))

	_, err = NewApplication("did:health:hospital", "City Hospital", TypeHospital, "DE", "", []byte{0x01}, "", "", nil, now)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeValidation))
}

func TestApprove(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	app, err := NewApplication("did:health:hospital", "City Hospital", TypeHospital, "DE", "Berlin", testKey(), "cert-42", "ops@city.example", []string{"ISO-15189"}, now)
	require.NoError(t, err)

	approved := now.Add(time.Hour)
	auth := app.Approve(approved)

	assert.Equal(t, domain.Identity("did:health:hospital"), auth.Identity)
	assert.Equal(t, StatusActive, auth.Status)
	assert.True(t, auth.IsActive())
	assert.Equal(t, approved, auth.RegisteredAt)
	assert.Equal(t, approved, auth.LastUpdated)
	assert.Zero(t, auth.TotalRecordsIssued)
	assert.Zero(t, auth.TotalRecordsRevoked)
	assert.Equal(t, []string{"ISO-15189"}, auth.Accreditations)
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	app, err := NewApplication("did:health:lab", "Metro Lab", TypeLaboratory, "FR", "", testKey(), "", "", []string{"A"}, now)
	require.NoError(t, err)

	auth := app.Approve(now)
	cp := auth.Clone()
	cp.PublicKey[0] = 0xFF
	cp.Accreditations[0] = "B"

	assert.Equal(t, byte(0x02), auth.PublicKey[0])
	assert.Equal(t, "A", auth.Accreditations[0])
}
