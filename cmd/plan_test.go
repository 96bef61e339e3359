package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPlanFile(t *testing.T) {
	in, err := readPlanFile(strings.NewReader(`{
		"hostId": "host-1",
		"hostTimezone": "Europe/Berlin",
		"windowStartDate": "2024-03-04T08:00:00Z",
		"windowEndDate": "2024-03-08T18:00:00Z",
		"slotDurationMinutes": 30,
		"userList": [{"id": "u1", "hostId": "host-1", "maxWorkLoadPercent": 80}],
		"eventParts": [{"groupId": "g1", "eventId": "e1", "part": 1, "lastPart": 1, "userId": "u1", "hostId": "host-1"}],
		"replan": {"externalEventId": "ext-1", "calendarId": "cal-1"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "host-1", in.HostID)
	assert.Equal(t, 30*time.Minute, in.SlotDuration)
	assert.Equal(t, 4, in.WindowStart.Day())
	require.Len(t, in.Users, 1)
	assert.Equal(t, 80, in.Users[0].MaxWorkLoadPercent)
	require.Len(t, in.EventParts, 1)
	assert.Equal(t, "e1", in.EventParts[0].EventID)
	require.NotNil(t, in.Replan)
	assert.Equal(t, "ext-1", in.Replan.ExternalEventID)
	assert.Equal(t, "cal-1", in.Replan.CalendarID)
}

func TestReadPlanFile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "hostId: host-1"},
		{name: "unknown field", input: `{"hostId": "host-1", "windowStart": "2024-03-04T08:00:00Z"}`},
		{name: "bad time", input: `{"windowStartDate": "monday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readPlanFile(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "decode planning input")
		})
	}
}
