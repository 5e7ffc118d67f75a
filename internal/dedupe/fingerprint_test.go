package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"harvester/internal/model"
)

func TestFingerprint(t *testing.T) {
	got := Fingerprint("a", "2025-10-02", "b")
	assert.Len(t, got, 64)
	assert.Equal(t, got, Fingerprint("a", "2025-10-02", "b"))
	assert.Regexp(t, "^[0-9a-f]{64}$", got)

	assert.NotEqual(t, got, Fingerprint("a", "2025-10-02", "c"))
	assert.NotEqual(t, got, Fingerprint("a", "2025-10-03", "b"))
	assert.NotEqual(t, got, Fingerprint("A", "2025-10-02", "b"))
}

func TestFingerprintKnownDigest(t *testing.T) {
	assert.Equal(t,
		"ccd6563835e9c209269a047a3b22c4def9b47c5baf616c8c1f72549764aa8be3",
		Fingerprint("Sample Event", "2025-10-02", "참가 신청 기간: 2025-10-02"))
}

func TestCandidateFingerprintIgnoresEndFields(t *testing.T) {
	a := model.CandidateEvent{Title: "학술제", Description: "d", StartDate: "2025-10-28", EndDate: "2025-10-28"}
	b := a
	b.EndDate = "2025-11-03"
	b.StartTime = "09:00"
	assert.Equal(t, CandidateFingerprint(a), CandidateFingerprint(b))
}
