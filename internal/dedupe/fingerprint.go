package dedupe

import (
	"crypto/sha256"
	"encoding/hex"

	"harvester/internal/model"
)

// Fingerprint hashes title, start date and description into a lowercase
// SHA-256 hex digest. Other fields do not participate.
func Fingerprint(title, startDate, description string) string {
	payload := title + "::" + startDate + "::" + description
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// CandidateFingerprint is Fingerprint over a candidate's fields.
func CandidateFingerprint(c model.CandidateEvent) string {
	return Fingerprint(c.Title, c.StartDate, c.Description)
}
