package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiredBoundary(t *testing.T) {
	expiry := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &ZKProof{ExpiresAt: expiry}

	assert.False(t, p.Expired(expiry.Add(-time.Second)))
	assert.False(t, p.Expired(expiry), "usable at the exact expiry instant")
	assert.True(t, p.Expired(expiry.Add(time.Nanosecond)))
}

func TestNoExpiry(t *testing.T) {
	p := &ZKProof{}
	assert.False(t, p.Expired(time.Date(2126, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDetailsHidesProofData(t *testing.T) {
	now := time.Now()
	p := &ZKProof{
		ProofHash:   "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		ProofData:   []byte{1, 2, 3, 4, 5},
		GeneratedAt: now,
	}

	details := p.Details(now)
	assert.Equal(t, 5, details.ProofDataLength)
	assert.False(t, details.Expired)
}
