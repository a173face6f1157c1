package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vowpipe/internal/runlog"
)

func seedRunLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := runlog.Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Insert(context.Background(), runlog.Record{
		Kind:      "predict",
		StartedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		TotalTime: 8 * time.Millisecond,
		NumLines:  40,
	})
	require.NoError(t, err)
	_, err = l.Insert(context.Background(), runlog.Record{
		Kind:      "train",
		StartedAt: time.Date(2026, 8, 30, 12, 1, 0, 0, time.UTC),
		TotalTime: 300 * time.Millisecond,
		NumLines:  1000,
	})
	require.NoError(t, err)
	return path
}

func TestRunsListsRecentCalls(t *testing.T) {
	path := seedRunLog(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", path})

	err := cmd.Execute()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "predict")
	assert.Contains(t, out, "train")
}

func TestRunsRespectsLimit(t *testing.T) {
	path := seedRunLog(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", path, "--limit", "1"})

	err := cmd.Execute()
	require.NoError(t, err)

	// Newest first: only the train row survives the limit.
	out := buf.String()
	assert.Contains(t, out, "train")
	assert.NotContains(t, out, "predict")
}

func TestRunsWithoutDatabase(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
