package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"
)

// GeneratePaymentLinkToken returns a high-entropy URL-safe token for the
// renewable payment link capability (32 random bytes, base64url).
func GeneratePaymentLinkToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateVerificationToken returns the permanent read-only tracking token
// stamped on an order at creation.
func GenerateVerificationToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateOrderNumber builds the human-facing order number, e.g.
// ORD-20260828-483920.
func GenerateOrderNumber(now time.Time) string {
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), randomNum.Int64())
}

// GenerateProofFileName builds a storage-safe name for an uploaded proof.
func GenerateProofFileName(proofID, ext string) string {
	return fmt.Sprintf("proof_%s%s", proofID, ext)
}
