package signer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s := New("secret", time.Hour)
	token, expiresAt, err := s.Sign("verify-email", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, parsedExpiry, err := s.Verify("verify-email", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestVerifyRejectsOtherPurpose(t *testing.T) {
	s := New("secret", time.Hour)
	token, _, err := s.Sign("verify-email", "user-1")
	require.NoError(t, err)

	_, _, err = s.Verify("reset-password", token)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := New("secret", time.Hour)
	token, _, err := s.Sign("verify-email", "user-1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[1] = "9999999999"
	_, _, err = s.Verify("verify-email", strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, _, err = New("other", time.Hour).Verify("verify-email", token)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, _, err = s.Verify("verify-email", "not-a-token")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyExpired(t *testing.T) {
	s := New("secret", time.Hour)
	issued := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, _, err := s.Sign("verify-email", "user-1")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, _, err = s.Verify("verify-email", token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSignRequiresSecret(t *testing.T) {
	_, _, err := New("", time.Hour).Sign("verify-email", "user-1")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
