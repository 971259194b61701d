package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/planner/internal/snapshotfile"
	"example.com/planner/internal/tracker"
	authlib "example.com/planner/pkg/auth"
)

const fixture = `{
  "version": 1,
  "activities": [
    {"id": "water", "title": "Beber agua", "frequency_type": "DAILY", "time_of_day": "08:00", "domain_id": "salud", "created_at": "2024-01-01T09:00:00Z"},
    {"id": "gym", "title": "Gimnasio", "frequency_type": "WEEKLY", "scheduled_days": ["L", "X"], "domain_id": "salud", "created_at": "2024-01-02T09:00:00Z"},
    {"id": "bills", "title": "Pagar facturas", "frequency_type": "MONTHLY", "domain_id": "finanzas", "created_at": "2024-01-03T09:00:00Z"},
    {"id": "passport", "title": "Renovar pasaporte", "frequency_type": "ONCE", "created_at": "2024-01-04T09:00:00Z"},
    {"id": "old", "title": "Archivada", "frequency_type": "DAILY", "is_archived": true, "created_at": "2024-01-05T09:00:00Z"}
  ]
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPeriodKeyCommand(t *testing.T) {
	out, err := run(t, "period-key", "--frequency", "weekly", "--date", "2021-01-03")
	require.NoError(t, err)
	require.Equal(t, "2020-W53\n", out)

	out, err = run(t, "period-key", "--frequency", "ONCE", "--date", "2021-01-03")
	require.NoError(t, err)
	require.Equal(t, "ONCE\n", out)

	_, err = run(t, "period-key", "--date", "2021-02-30")
	require.Error(t, err)
}

func TestDueCommandListsScheduledActivities(t *testing.T) {
	path := writeFixture(t)

	out, err := run(t, "due", "--plain", "-f", path, "--date", "2024-01-16")
	require.NoError(t, err)
	require.Contains(t, out, "Beber agua")
	require.Contains(t, out, "Pagar facturas")
	require.Contains(t, out, "Renovar pasaporte")
	require.NotContains(t, out, "Gimnasio", "gym is scheduled Monday and Wednesday")
	require.NotContains(t, out, "Archivada")
	require.Contains(t, out, "0/3 done (0%)")

	out, err = run(t, "due", "--plain", "-f", path, "--date", "2024-01-17", "--domain", "salud")
	require.NoError(t, err)
	require.Contains(t, out, "Gimnasio")
	require.Contains(t, out, "0/2 done")
}

func TestToggleThenViewCountsNativeOnly(t *testing.T) {
	path := writeFixture(t)
	now = func() time.Time { return time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	out, err := run(t, "toggle", "gym", "-f", path, "--date", "2024-01-15")
	require.NoError(t, err)
	require.Equal(t, "gym 2024-W03: done\n", out)

	_, err = run(t, "toggle", "water", "-f", path, "--date", "2024-01-15")
	require.NoError(t, err)

	out, err = run(t, "view", "week", "--plain", "-f", path, "--date", "2024-01-18")
	require.NoError(t, err)
	require.Contains(t, out, "Semanales")
	require.Contains(t, out, "Mensuales")
	require.Contains(t, out, "Única vez")
	require.NotContains(t, out, "Diarias")
	require.Contains(t, out, "[x] Gimnasio")
	require.Contains(t, out, "1/1 done (100%)")
	require.Less(t, strings.Index(out, "Semanales"), strings.Index(out, "Mensuales"))

	out, err = run(t, "toggle", "gym", "--undo", "-f", path, "--date", "2024-01-17")
	require.NoError(t, err)
	require.Equal(t, "gym 2024-W03: not done\n", out)

	snap, err := snapshotfile.Load(path)
	require.NoError(t, err)
	gym, ok := snap.Find("gym")
	require.True(t, ok)
	require.Len(t, gym.Completions, 1)
	require.NotEmpty(t, gym.Completions[0].ID)
	firstID := gym.Completions[0].ID

	_, err = run(t, "toggle", "gym", "-f", path, "--date", "2024-01-19")
	require.NoError(t, err)
	snap, err = snapshotfile.Load(path)
	require.NoError(t, err)
	gym, _ = snap.Find("gym")
	require.Len(t, gym.Completions, 1)
	require.Equal(t, firstID, gym.Completions[0].ID)

	_, err = run(t, "toggle", "old", "-f", path, "--date", "2024-01-15")
	require.ErrorIs(t, err, tracker.ErrArchivedActivity)
	snap, err = snapshotfile.Load(path)
	require.NoError(t, err)
	old, _ := snap.Find("old")
	require.Empty(t, old.Completions)

	_, err = run(t, "toggle", "missing", "-f", path, "--date", "2024-01-15")
	require.ErrorIs(t, err, tracker.ErrUnknownActivity)
}

func TestViewUsesLabelsFile(t *testing.T) {
	path := writeFixture(t)
	labels := filepath.Join(t.TempDir(), "labels.toml")
	require.NoError(t, os.WriteFile(labels, []byte("[labels]\nDAILY = \"Every day\"\n"), 0o600))

	out, err := run(t, "view", "day", "--plain", "-f", path, "--labels", labels, "--date", "2024-01-15")
	require.NoError(t, err)
	require.Contains(t, out, "Every day")
	require.Contains(t, out, "Semanales")

	_, err = run(t, "view", "year", "-f", path)
	require.Error(t, err)
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "planner.cli")

	out, err := run(t, "token", "--subject", "owner-9", "--scope", "planner:read")
	require.NoError(t, err)

	claims, err := authlib.Parse(strings.TrimSpace(out), authlib.Config{Secret: "cli-secret", Issuer: "planner.cli"})
	require.NoError(t, err)
	require.Equal(t, "owner-9", claims.Subject)
	require.True(t, claims.HasScope("planner:read"))
	require.False(t, claims.HasScope("planner:write"))

	_, err = run(t, "token")
	require.Error(t, err)
}
