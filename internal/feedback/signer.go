// Package feedback mints and verifies the HMAC-signed 👍/👎 links appended
// to posted review comments, and records the resulting signals.
package feedback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"github.com/sevigo/graphwarden/internal/config"
	"github.com/sevigo/graphwarden/internal/core"
)

// ErrSignerDisabled is returned by SignedLink when no base URL or secret is
// configured. Callers must treat this as "omit the feedback link", never
// fall back to producing an unsigned one.
var ErrSignerDisabled = errors.New("feedback: signer disabled, base url or secret not configured")

// ErrInvalidToken is returned by Verify when the token does not match the
// expected HMAC for its claimed commentId and signal.
var ErrInvalidToken = errors.New("feedback: invalid token")

// Signer mints and verifies feedback tokens scoped to one server secret.
type Signer struct {
	baseURL string
	secret  []byte
}

// New builds a Signer from the feedback section of the config. Enabled
// reports whether both a base URL and secret were configured; when it
// doesn't, SignedLink always returns ErrSignerDisabled so comments never carry a
// feedback link pointing at an unverifiable endpoint.
func New(cfg config.FeedbackConfig) *Signer {
	return &Signer{baseURL: cfg.BaseURL, secret: []byte(cfg.Secret)}
}

// Enabled reports whether the signer has both a base URL and a secret.
func (s *Signer) Enabled() bool {
	return s.baseURL != "" && len(s.secret) > 0
}

// token computes HMAC-SHA-256 over "commentId:signal" and returns it as hex.
func (s *Signer) token(commentID string, signal core.FeedbackSignalKind) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%s", commentID, signal)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedLink mints a verifiable URL for the given comment and signal,
// pointing at the configured feedback base URL. It returns
// ErrSignerDisabled when the signer has no base URL or secret, rather than
// producing a link that can never be verified.
func (s *Signer) SignedLink(commentID string, signal core.FeedbackSignalKind) (string, error) {
	if !s.Enabled() {
		return "", ErrSignerDisabled
	}
	q := url.Values{}
	q.Set("id", commentID)
	q.Set("signal", string(signal))
	q.Set("token", s.token(commentID, signal))
	return fmt.Sprintf("%s?%s", s.baseURL, q.Encode()), nil
}

// Verify checks a presented token against the expected HMAC for
// (commentID, signal) in constant time. It refuses disabled signers (no
// secret configured means no token can ever be valid) and malformed hex.
func (s *Signer) Verify(commentID string, signal core.FeedbackSignalKind, token string) error {
	if !s.Enabled() {
		return ErrInvalidToken
	}
	presented, err := hex.DecodeString(token)
	if err != nil {
		return ErrInvalidToken
	}
	expected, err := hex.DecodeString(s.token(commentID, signal))
	if err != nil {
		return ErrInvalidToken
	}
	if !hmac.Equal(presented, expected) {
		return ErrInvalidToken
	}
	return nil
}
