package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/model"
)

func timed(day, start, end string) model.ExistingEvent {
	return model.ExistingEvent{
		Start: model.EventTime{DateTime: day + "T" + start + ":00+09:00"},
		End:   model.EventTime{DateTime: day + "T" + end + ":00+09:00"},
	}
}

func TestExistingRange(t *testing.T) {
	r, err := ExistingRange(model.ExistingEvent{
		Start: model.EventTime{Date: "2025-10-22"},
		End:   model.EventTime{Date: "2025-10-23"},
	})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ExistingRange(timed("2025-10-22", "09:00", "10:00"))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC), r.Start.UTC())
	assert.Equal(t, time.Hour, r.End.Sub(r.Start))

	_, err = ExistingRange(model.ExistingEvent{
		Start: model.EventTime{DateTime: "2025-10-22Tnoon"},
		End:   model.EventTime{DateTime: "2025-10-22T13:00:00+09:00"},
	})
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
}

func TestCandidateRange(t *testing.T) {
	r, err := CandidateRange(model.CandidateEvent{StartDate: "2025-10-22"}, "2025-10-22")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = CandidateRange(model.CandidateEvent{StartDate: "2025-10-22", StartTime: "14:00"}, "2025-10-22")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "2025-10-22T14:00:00+09:00", r.Start.Format(time.RFC3339))
	assert.Equal(t, "2025-10-22T23:59:00+09:00", r.End.Format(time.RFC3339))

	_, err = CandidateRange(model.CandidateEvent{StartDate: "2025-10-22", StartTime: "2pm"}, "2025-10-22")
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
}

func TestOverlaps(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 10, 22, h, 0, 0, 0, KST) }
	nine := model.TimeRange{Start: at(9), End: at(10)}

	assert.True(t, Overlaps(nine, nine))
	assert.False(t, Overlaps(nine, model.TimeRange{Start: at(10), End: at(11)}))
	assert.True(t, Overlaps(model.TimeRange{Start: at(9), End: at(11)}, model.TimeRange{Start: at(10), End: at(12)}))
	assert.False(t, Overlaps(nine, model.TimeRange{Start: at(14), End: at(15)}))
}
