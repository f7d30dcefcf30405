package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner creates and validates time-limited download tokens that
// bind a resource ID to a stored file name.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the resource and file name.
func (s *SignedURLSigner) Generate(resourceID, filename string) (string, time.Time, error) {
	if resourceID == "" || filename == "" {
		return "", time.Time{}, fmt.Errorf("resourceID and filename required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedID := base64.RawURLEncoding.EncodeToString([]byte(resourceID))
	encodedName := base64.RawURLEncoding.EncodeToString([]byte(filename))
	signature := s.sign(encodedID, ts, encodedName)
	return strings.Join([]string{encodedID, ts, encodedName, signature}, "."), expiresAt, nil
}

// Parse validates a token and returns the embedded resource ID and file name.
func (s *SignedURLSigner) Parse(token string) (resourceID, filename string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", fmt.Errorf("invalid token format")
	}
	encodedID, ts, encodedName, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(encodedID, ts, encodedName)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", fmt.Errorf("invalid token signature")
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", fmt.Errorf("invalid timestamp")
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", "", fmt.Errorf("token expired")
	}

	rawID, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return "", "", fmt.Errorf("decode resource id: %w", err)
	}
	rawName, err := base64.RawURLEncoding.DecodeString(encodedName)
	if err != nil {
		return "", "", fmt.Errorf("decode filename: %w", err)
	}
	return string(rawID), string(rawName), nil
}

func (s *SignedURLSigner) sign(parts ...string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
