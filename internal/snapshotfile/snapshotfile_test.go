package snapshotfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/planner/internal/tracker"
)

const sample = `{
  "version": 1,
  "activities": [
    {
      "id": "gym",
      "title": "Gimnasio",
      "frequency_type": "WEEKLY",
      "scheduled_days": ["L", "X", "V"],
      "time_of_day": "18:00",
      "domain_id": "salud",
      "created_at": "2024-01-01T09:00:00Z",
      "completions": [
        {"id": "c1", "period_key": "2024-W03", "completed": true, "date": "2024-01-15", "completed_at": "2024-01-15T19:00:00Z"}
      ]
    },
    {
      "id": "legacy",
      "title": "Regar plantas",
      "frequency_type": "BIWEEKLY",
      "created_at": "2024-01-02T09:00:00Z"
    }
  ]
}`

func TestDecodeBuildsEngineSnapshot(t *testing.T) {
	snap, err := Decode([]byte(sample))
	require.NoError(t, err)
	require.Len(t, snap.Activities, 2)

	gym := snap.Activities[0]
	require.Equal(t, tracker.Weekly, gym.FrequencyType)
	require.Equal(t, []tracker.DayCode{tracker.Monday, tracker.Wednesday, tracker.Friday}, gym.ScheduledDays)
	require.Len(t, gym.Completions, 1)
	require.Equal(t, "gym", gym.Completions[0].ActivityID)
	require.Equal(t, "2024-01-15", gym.Completions[0].Date.String())
	require.True(t, gym.IsCompletedFor(tracker.MustParseDate("2024-01-19")))

	legacy := snap.Activities[1]
	require.Equal(t, tracker.Daily, legacy.Frequency())
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := Decode([]byte(`{"version": 9, "activities": []}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"activities": [{"id": "a", "scheduled_days": ["Q"]}]}`))
	require.ErrorIs(t, err, tracker.ErrInvalidDayCode)

	_, err = Decode([]byte(`{"activities": [{"id": "a", "completions": [{"date": "2024-13-01"}]}]}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"activities": [{"id": "a", "time_of_day": "7:00"}]}`))
	require.ErrorIs(t, err, tracker.ErrInvalidTimeOfDay)
}

func TestSaveAndLoadKeepToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.json")

	empty, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, empty.Activities)

	snap, err := Decode([]byte(sample))
	require.NoError(t, err)
	_, err = snap.Toggle("gym", tracker.MustParseDate("2024-01-17"), false, time.Date(2024, 1, 17, 20, 0, 0, 0, time.UTC), "lesión", "c-gym-w03")
	require.NoError(t, err)
	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)
	gym, ok := loaded.Find("gym")
	require.True(t, ok)
	require.Len(t, gym.Completions, 1)
	require.False(t, gym.Completions[0].Completed)
	require.Equal(t, "lesión", gym.Completions[0].Notes)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
}
