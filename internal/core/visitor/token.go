package visitor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stratahq/strata/internal/common/errorx"
)

// KeySource supplies the per-tenant signing material for QR tokens. The
// verifier accepts tokens signed by the currently configured key only.
type KeySource interface {
	SigningKey(ctx context.Context, tenantID uint) ([]byte, error)
}

// TokenCodec signs and verifies the opaque QR token. The payload is
// self-describing: it embeds the request id and the expiry, so an expired
// token is rejected without a store lookup.
type TokenCodec struct {
	key []byte
}

// NewTokenCodec creates a codec bound to one tenant's signing key
func NewTokenCodec(key []byte) *TokenCodec {
	return &TokenCodec{key: key}
}

// TokenClaims is what a decoded token carries
type TokenClaims struct {
	RequestID  string
	ValidUntil time.Time
	Nonce      string
}

// Sign produces the opaque token string for a request
func (c *TokenCodec) Sign(requestID string, validUntil time.Time, nonce string) string {
	payload := fmt.Sprintf("%s|%d|%s", requestID, validUntil.Unix(), nonce)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + c.signature(payload)
}

// Verify checks the token signature against the codec's key and returns
// the embedded claims. It fails with errorx.TokenInvalid on any structural
// or signature problem and errorx.TokenExpired when now is at or past the
// embedded expiry.
func (c *TokenCodec) Verify(token string, now time.Time) (*TokenClaims, error) {
	claims, payload, err := decodeToken(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(token, ".", 2)
	if !hmac.Equal([]byte(parts[1]), []byte(c.signature(payload))) {
		return nil, errorx.TokenInvalid
	}
	if !now.Before(claims.ValidUntil) {
		return nil, errorx.TokenExpired
	}
	return claims, nil
}

// DecodeUnverified parses a token's embedded claims without checking the
// signature. Callers use it to locate the request (and with it the tenant
// key) and to short-circuit expired tokens before any store lookup; an
// access decision still requires Verify.
func DecodeUnverified(token string) (*TokenClaims, error) {
	claims, _, err := decodeToken(token)
	return claims, err
}

func decodeToken(token string) (*TokenClaims, string, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, "", errorx.TokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, "", errorx.TokenInvalid
	}
	payload := string(raw)
	fields := strings.Split(payload, "|")
	if len(fields) != 3 || fields[0] == "" || fields[2] == "" {
		return nil, "", errorx.TokenInvalid
	}
	expiry, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, "", errorx.TokenInvalid
	}
	return &TokenClaims{
		RequestID:  fields[0],
		ValidUntil: time.Unix(expiry, 0),
		Nonce:      fields[2],
	}, payload, nil
}

func (c *TokenCodec) signature(payload string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
