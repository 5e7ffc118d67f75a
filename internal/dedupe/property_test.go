package dedupe

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"harvester/internal/model"
)

func TestSimilarityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("similarity is symmetric", prop.ForAll(
		func(a, b string) bool {
			return Similarity(a, b) == Similarity(b, a)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("similarity is bounded", prop.ForAll(
		func(a, b string) bool {
			s := Similarity(a, b)
			return s >= 0 && s <= 1
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("a string is identical to itself", prop.ForAll(
		func(a string) bool {
			return Similarity(a, a) == 1
		},
		gen.AlphaString(),
	))

	properties.Property("empty against non-empty scores zero", prop.ForAll(
		func(a string) bool {
			return Similarity("", "x"+a) == 0
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestOverlapAndFingerprintProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, KST)

	properties.Property("a non-degenerate range overlaps itself", prop.ForAll(
		func(offset, length int) bool {
			start := base.Add(time.Duration(offset) * time.Minute)
			r := model.TimeRange{Start: start, End: start.Add(time.Duration(length) * time.Minute)}
			return Overlaps(r, r)
		},
		gen.IntRange(0, 500000),
		gen.IntRange(1, 10000),
	))

	properties.Property("overlap is symmetric", prop.ForAll(
		func(a, alen, b, blen int) bool {
			r1 := model.TimeRange{Start: base.Add(time.Duration(a) * time.Minute), End: base.Add(time.Duration(a+alen) * time.Minute)}
			r2 := model.TimeRange{Start: base.Add(time.Duration(b) * time.Minute), End: base.Add(time.Duration(b+blen) * time.Minute)}
			return Overlaps(r1, r2) == Overlaps(r2, r1)
		},
		gen.IntRange(0, 2000),
		gen.IntRange(1, 300),
		gen.IntRange(0, 2000),
		gen.IntRange(1, 300),
	))

	properties.Property("fingerprint is deterministic", prop.ForAll(
		func(title, description string) bool {
			return Fingerprint(title, "2025-10-28", description) == Fingerprint(title, "2025-10-28", description)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("fingerprint is sensitive to description", prop.ForAll(
		func(title, description string) bool {
			return Fingerprint(title, "2025-10-28", description) != Fingerprint(title, "2025-10-28", description+"!")
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
