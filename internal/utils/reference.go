package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DonationRefPrefix prefixes every donation transaction reference
const DonationRefPrefix = "DON"

// GenerateReference generates a unique reference for money-moving records.
// The format is PREFIX_YYYYMMDDhhmmss_<32 hex chars>; the random part carries
// 128 bits so references never collide under concurrent creation.
func GenerateReference(prefix string, now time.Time) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s", prefix, now.UTC().Format("20060102150405"), hex.EncodeToString(b)), nil
}
