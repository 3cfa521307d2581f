package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "linkrover.yaml"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewStoreDefaults(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	props := s.Properties()
	require.Len(t, props, len(schema))
	require.False(t, s.Saved(), "a store without a file on disk starts unsaved")

	byKey := make(map[string]Property)
	for _, p := range props {
		byKey[p.Key] = p
	}
	require.Equal(t, "4", byKey["workers"].Value)
	require.Equal(t, DisplayNumber, byKey["workers"].Display)
	require.True(t, byKey["workers"].Advanced)
	require.Equal(t, "true", byKey["keep_local_records"].Value)
	require.Equal(t, DisplayBool, byKey["keep_local_records"].Display)
}

func TestUpdateValueValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key   string
		value string
	}{
		{"workers", "8"},
		{"entry_urls", "https://a.example https://b.example"},
		{"keep_local_records", "false"},
		{"user_agent", "custom-agent/2"},
	}

	for _, tc := range cases {
		s := newTestStore(t)
		require.NoError(t, s.UpdateValue(tc.key, tc.value))
		for _, p := range s.Properties() {
			if p.Key == tc.key {
				require.Equal(t, tc.value, p.Value)
			}
		}
		require.False(t, s.Saved())
	}
}

func TestUpdateValueInvalidLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric number", "workers", "many"},
		{"negative number", "max_attempts", "-1"},
		{"bad bool literal", "keep_local_records", "yes"},
		{"empty required string", "user_agent", ""},
		{"unknown key", "no_such_key", "x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestStore(t)
			before := s.Properties()
			savedBefore := s.Saved()
			logBefore := len(s.Log())

			err := s.UpdateValue(tc.key, tc.value)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			require.Equal(t, before, s.Properties())
			require.Equal(t, savedBefore, s.Saved())
			require.Len(t, s.Log(), logBefore, "failed updates must not log")
		})
	}
}

func TestUpdateValueAppendsAuditLine(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	base := len(s.Log())
	require.NoError(t, s.UpdateValue("workers", "2"))

	log := s.Log()
	require.Len(t, log, base+1)
	require.Contains(t, log[len(log)-1], `config: workers "4" -> "2"`)
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "linkrover.yaml")
	s, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.UpdateValue("workers", "9"))
	require.NoError(t, s.UpdateValue("entry_urls", "https://a.example,https://b.example"))
	require.NoError(t, s.Persist())
	require.True(t, s.Saved())

	reloaded, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	require.True(t, reloaded.Saved())

	snap := reloaded.Snapshot()
	require.Equal(t, 9, snap.Workers)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, snap.EntryURLs)
}

func TestPersistIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "linkrover.yaml")
	s, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Persist())
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, s.Saved())

	require.NoError(t, s.Persist())
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, s.Saved())

	require.Equal(t, first, second)
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "linkrover.yaml"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Persist())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "linkrover.yaml", entries[0].Name())
}

func TestAppendLogIsMonotonic(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	base := len(s.Log())
	s.AppendLog("run started")
	s.AppendLog("run finished")

	log := s.Log()
	require.Len(t, log, base+2)
	require.Contains(t, log[base], "run started")
	require.Contains(t, log[base+1], "run finished")
}

func TestSnapshotTypedValues(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.UpdateValue("probe_timeout_seconds", "30"))
	require.NoError(t, s.UpdateValue("backoff_initial_ms", "100"))
	require.NoError(t, s.UpdateValue("grace_period_seconds", "2"))
	require.NoError(t, s.UpdateValue("pdf_path", "data/links.pdf"))

	snap := s.Snapshot()
	require.Equal(t, 30*time.Second, snap.ProbeTimeout)
	require.Equal(t, 100*time.Millisecond, snap.BackoffInitial)
	require.Equal(t, 2*time.Second, snap.GracePeriod)
	require.Equal(t, "data/links.pdf", snap.PDFPath)
	require.True(t, snap.HasSources())
}

func TestToggleHelpers(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.True(t, s.KeepLocalRecords())
	require.True(t, s.GenerateReport())
	require.Equal(t, "data/reports", s.ReportDir())

	require.NoError(t, s.UpdateValue("gen_report", "false"))
	require.False(t, s.GenerateReport())
}
