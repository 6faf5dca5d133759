// Package signer issues and verifies stateless, expiring HMAC tokens such as email verification
// links. A token is only valid for the purpose it was signed for.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed     = errors.New("malformed token")
	ErrBadSignature  = errors.New("invalid token signature")
	ErrExpired       = errors.New("token expired")
	ErrMissingSecret = errors.New("signing secret missing")
)

// Signer creates and validates signed tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New constructs a signer with the provided secret and TTL.
func New(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token binding subject to purpose until the TTL elapses.
func (s *Signer) Sign(purpose, subject string) (string, time.Time, error) {
	if purpose == "" || subject == "" {
		return "", time.Time{}, fmt.Errorf("purpose and subject required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(subject))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encoded, ts, s.mac(purpose, encoded, ts)}, "."), expiresAt, nil
}

// Verify checks the signature and expiry of token for purpose and returns the signed subject.
func (s *Signer) Verify(purpose, token string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", time.Time{}, ErrMalformed
	}
	encoded, ts, signature := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(s.mac(purpose, encoded, ts)), []byte(signature)) {
		return "", time.Time{}, ErrBadSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", time.Time{}, ErrMalformed
	}
	expiresAt := time.Unix(expUnix, 0).UTC()
	if s.now().After(expiresAt) {
		return "", expiresAt, ErrExpired
	}
	return string(raw), expiresAt, nil
}

func (s *Signer) mac(purpose, encoded, ts string) string {
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(purpose + "|" + encoded + "|" + ts))
	return hex.EncodeToString(m.Sum(nil))
}
