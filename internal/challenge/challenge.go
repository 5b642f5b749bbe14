// Package challenge issues and verifies the proof-of-execution step shown to
// suspicious visitors. The page runs a small script that hashes a server
// nonce; only clients that execute JavaScript can answer.
package challenge

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for tokens that fail to decode or verify.
	ErrInvalidToken = errors.New("invalid challenge token")
	// ErrExpired is returned for tokens older than the issuer TTL.
	ErrExpired = errors.New("challenge expired")
	// ErrInvalidProof is returned when the client's answer is wrong.
	ErrInvalidProof = errors.New("invalid challenge proof")
)

const (
	nonceBytes = 16
	clockSkew  = 30 * time.Second
)

// Challenge is one issued challenge.
type Challenge struct {
	Token     string
	Nonce     string
	ExpiresAt time.Time
}

// Issuer signs and verifies challenge tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an issuer. The secret must not be empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("challenge secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("challenge ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns how long issued challenges stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a challenge bound to shortCode.
func (i *Issuer) Issue(shortCode string, now time.Time) (Challenge, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, fmt.Errorf("generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	body := strings.Join([]string{shortCode, strconv.FormatInt(now.Unix(), 10), nonce}, ".")
	raw := body + "." + i.sign(body)

	return Challenge{
		Token:     base64.RawURLEncoding.EncodeToString([]byte(raw)),
		Nonce:     nonce,
		ExpiresAt: now.Add(i.ttl),
	}, nil
}

// Verify checks that token was issued for shortCode, is still fresh and
// that proof is the hex SHA-256 of its nonce.
func (i *Issuer) Verify(shortCode, token, proof string, now time.Time) error {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrInvalidToken
	}

	parts := strings.Split(string(decoded), ".")
	if len(parts) != 4 {
		return ErrInvalidToken
	}
	code, tsRaw, nonce, mac := parts[0], parts[1], parts[2], parts[3]

	body := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(mac), []byte(i.sign(body))) {
		return ErrInvalidToken
	}
	if code != shortCode {
		return ErrInvalidToken
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	issued := time.Unix(ts, 0)
	if issued.After(now.Add(clockSkew)) {
		return ErrInvalidToken
	}
	if now.Sub(issued) > i.ttl {
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(strings.ToLower(proof)), []byte(Solve(nonce))) != 1 {
		return ErrInvalidProof
	}
	return nil
}

// Solve computes the expected answer for nonce.
func Solve(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return hex.EncodeToString(sum[:])
}

func (i *Issuer) sign(body string) string {
	m := hmac.New(sha256.New, i.secret)
	m.Write([]byte(body))
	return hex.EncodeToString(m.Sum(nil))
}
