package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/model"
)

func TestDaysDuration(t *testing.T) {
	assert.Equal(t, 1, DaysDuration("2025-10-28", "2025-10-28"))
	assert.Equal(t, 2, DaysDuration("2025-10-28", "2025-10-29"))
	assert.Equal(t, 4, DaysDuration("2025-10-28", "2025-10-31"))
	assert.Equal(t, 7, DaysDuration("2025-10-28", "2025-11-03"))
	assert.Equal(t, 4, DaysDuration("2025-10-30", "2025-11-02"))
	assert.Equal(t, 1, DaysDuration("bad", "2025-11-02"))
}

func TestSplitLongEventKeepsShortEvents(t *testing.T) {
	base := model.CandidateEvent{Title: "학술제", Description: "Event description", StartDate: "2025-10-28"}
	for _, end := range []string{"2025-10-28", "2025-10-29", "2025-10-30"} {
		c := base
		c.EndDate = end
		got := SplitLongEvent(c)
		require.Len(t, got, 1)
		assert.Equal(t, c, got[0])
	}
}

func TestSplitLongEventWeek(t *testing.T) {
	c := model.CandidateEvent{
		Title:       "학술제",
		Description: "Event description",
		StartDate:   "2025-10-28",
		EndDate:     "2025-11-03",
	}

	got := SplitLongEvent(c)
	require.Len(t, got, 2)

	assert.Equal(t, "학술제 (~2025-11-03)", got[0].Title)
	assert.Equal(t, "2025-10-28", got[0].StartDate)
	assert.Equal(t, "2025-10-28", got[0].EndDate)
	assert.Equal(t, "Event description", got[0].Description)

	assert.Equal(t, "학술제 (2025-10-28~)", got[1].Title)
	assert.Equal(t, "2025-11-03", got[1].StartDate)
	assert.Equal(t, "2025-11-03", got[1].EndDate)
	assert.Equal(t, "Event description", got[1].Description)
}

func TestSplitLongEventPreservesTimes(t *testing.T) {
	c := model.CandidateEvent{
		Title:     "학술제",
		StartDate: "2025-10-28",
		EndDate:   "2025-10-31",
		StartTime: "09:00",
		EndTime:   "18:00",
	}

	got := SplitLongEvent(c)
	require.Len(t, got, 2)
	for _, part := range got {
		assert.Equal(t, "09:00", part.StartTime)
		assert.Equal(t, "18:00", part.EndTime)
	}
}
