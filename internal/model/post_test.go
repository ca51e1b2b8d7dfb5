package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDeadline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"date only", "2026-12-31", "2026-12-31T00:00:00.000Z"},
		{"datetime-local form", "2026-12-31T18:30", "2026-12-31T18:30:00.000Z"},
		{"RFC3339 UTC", "2026-12-31T18:30:00Z", "2026-12-31T18:30:00.000Z"},
		{"RFC3339 with offset converts to UTC", "2026-12-31T18:30:00+02:00", "2026-12-31T16:30:00.000Z"},
		{"fractional seconds", "2026-12-31T18:30:00.123456Z", "2026-12-31T18:30:00.123Z"},
		{"surrounding whitespace", "  2026-12-31  ", "2026-12-31T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDeadline(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDeadline_Rejects(t *testing.T) {
	for _, bad := range []string{"", "tomorrow", "31/12/2026", "2026-13-01"} {
		_, err := NormalizeDeadline(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestPostIsActive(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline string
		want     bool
	}{
		{"future", "2026-10-20T00:00:00.000Z", true},
		{"exactly now", "2026-10-19T12:00:00.000Z", true},
		{"one second ago", "2026-10-19T11:59:59.000Z", false},
		{"date only today is midnight and already past", "2026-10-19", false},
		{"unparseable counts as expired", "soon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Post{Deadline: tt.deadline}
			assert.Equal(t, tt.want, p.IsActive(now))
		})
	}
}

func TestPostPatchIsEmpty(t *testing.T) {
	assert.True(t, PostPatch{}.IsEmpty())

	title := "new"
	assert.False(t, PostPatch{Title: &title}.IsEmpty())
}

func TestApplicationStatusIsKnown(t *testing.T) {
	for _, s := range []ApplicationStatus{StatusPending, StatusUnderReview, StatusAccepted, StatusWaitlisted, StatusDeclined} {
		assert.True(t, s.IsKnown(), string(s))
	}
	assert.False(t, ApplicationStatus("approved").IsKnown())
	assert.False(t, ApplicationStatus("").IsKnown())
}

func TestIsValidCategory(t *testing.T) {
	assert.True(t, IsValidCategory("Healthcare"))
	assert.False(t, IsValidCategory("healthcare"))
	assert.False(t, IsValidCategory(""))
}
