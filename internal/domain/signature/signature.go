// Package signature verifies webhook delivery signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Header carries the delivery signature.
const Header = "X-Hub-Signature-256"

const prefix = "sha256="

// Sentinel errors. All of them mean the delivery must be rejected.
var (
	ErrMissingSignature = errors.New("signature header is required")
	ErrMissingSecret    = errors.New("signature secret is required")
	ErrInvalidSignature = errors.New("signature verification failed")
)

// Verifier checks HMAC-SHA256 signatures in the "sha256=<hex>" format.
type Verifier struct {
	Secret string
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret string) Verifier {
	return Verifier{Secret: secret}
}

// Verify checks header against the HMAC of the exact body bytes.
// It fails closed on a missing header, missing secret or any mismatch.
func (v Verifier) Verify(body []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	if strings.TrimSpace(v.Secret) == "" {
		return ErrMissingSecret
	}
	if !strings.HasPrefix(header, prefix) {
		return fmt.Errorf("%w: expected %q prefix", ErrInvalidSignature, prefix)
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return fmt.Errorf("%w: decode hex signature: %w", ErrInvalidSignature, err)
	}
	if subtle.ConstantTimeCompare(decoded, v.digest(body)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// Sign renders the header value for body.
func (v Verifier) Sign(body []byte) string {
	return prefix + hex.EncodeToString(v.digest(body))
}

func (v Verifier) digest(body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(v.Secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
