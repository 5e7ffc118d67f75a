package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateNormalize(t *testing.T) {
	c := CandidateEvent{Title: "a", StartDate: "2025-10-22", StartTime: "09:00"}
	c.Normalize()
	assert.Equal(t, "2025-10-22", c.EndDate)
	assert.Equal(t, "09:00", c.EndTime)
	assert.True(t, c.Timed())

	lone := CandidateEvent{Title: "b", StartDate: "2025-10-22", EndDate: "2025-10-23", EndTime: "18:00"}
	lone.Normalize()
	assert.Empty(t, lone.EndTime)
	assert.Equal(t, "2025-10-23", lone.EndDate)
	assert.False(t, lone.Timed())
}

func TestEventTimeDay(t *testing.T) {
	assert.Equal(t, "2025-10-02", EventTime{Date: "2025-10-02"}.Day())
	assert.Equal(t, "2025-10-22", EventTime{DateTime: "2025-10-22T09:00:00+09:00"}.Day())
	assert.Equal(t, "", EventTime{DateTime: "bad"}.Day())
}
