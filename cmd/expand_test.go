package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetassist/internal/meeting"
)

func baseExpandOptions() expandOptions {
	return expandOptions{
		start:     "2024-03-04T09:00:00Z",
		end:       "2024-03-04T10:00:00Z",
		tz:        "UTC",
		frequency: "weekly",
		interval:  1,
		until:     "2024-03-25T00:00:00Z",
		summary:   "Weekly sync",
		id:        "M1",
		format:    "json",
	}
}

func TestRunExpand_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runExpand(&buf, baseExpandOptions()))

	var assists []meeting.MeetingAssist
	require.NoError(t, json.Unmarshal(buf.Bytes(), &assists))
	require.Len(t, assists, 3)
	assert.Equal(t, "M1", assists[0].ID)
	assert.Equal(t, meeting.StatusPending, assists[0].Status)
	for i, a := range assists[1:] {
		require.NotNil(t, a.Series)
		assert.Equal(t, "M1", a.Series.OriginalMeetingID)
		assert.Equal(t, 7*(i+1), a.Series.DayShift)
	}
}

func TestRunExpand_ICS(t *testing.T) {
	opts := baseExpandOptions()
	opts.format = "ics"

	var buf bytes.Buffer
	require.NoError(t, runExpand(&buf, opts))
	assert.Equal(t, 3, strings.Count(buf.String(), "BEGIN:VEVENT"))
	assert.Equal(t, 2, strings.Count(buf.String(), "RELATED-TO:M1"))
}

func TestRunExpand_GeneratesID(t *testing.T) {
	opts := baseExpandOptions()
	opts.id = ""

	var buf bytes.Buffer
	require.NoError(t, runExpand(&buf, opts))

	var assists []meeting.MeetingAssist
	require.NoError(t, json.Unmarshal(buf.Bytes(), &assists))
	require.NotEmpty(t, assists)
	assert.Len(t, assists[0].ID, 36)
}

func TestRunExpand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*expandOptions)
		wantErr string
	}{
		{name: "format", mutate: func(o *expandOptions) { o.format = "csv" }, wantErr: "unsupported format"},
		{name: "start", mutate: func(o *expandOptions) { o.start = "" }, wantErr: "invalid --start"},
		{name: "until", mutate: func(o *expandOptions) { o.until = "never" }, wantErr: "invalid --until"},
		{name: "frequency", mutate: func(o *expandOptions) { o.frequency = "hourly" }},
		{name: "interval", mutate: func(o *expandOptions) { o.interval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseExpandOptions()
			tt.mutate(&opts)
			err := runExpand(&bytes.Buffer{}, opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
