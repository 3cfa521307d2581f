// Package config implements the typed, validated, persisted settings store
// that parameterizes link-check runs, plus the process-wide audit log.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/checker"
)

// ValidationError reports a rejected property update. It is local and
// recoverable: store state is untouched when one is returned.
type ValidationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Key, e.Reason)
}

// PersistError reports a failed write of the durable configuration file.
// The in-memory state is unchanged and the operation is retryable.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist config to %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store holds the fixed property schema with current values, the saved
// flag, and the append-only audit log. All methods are safe for concurrent
// use; updates and persists are serialized.
type Store struct {
	mu     sync.RWMutex
	path   string
	props  []Property
	index  map[string]int
	saved  bool
	log    []string
	now    func() time.Time
	logger *zap.Logger
}

// NewStore builds a Store from the YAML file at path, falling back to
// schema defaults for anything absent. LINKROVER_* environment variables
// override file values. A missing file is not an error; the store simply
// starts unsaved.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	v.SetEnvPrefix("LINKROVER")
	v.AutomaticEnv()
	for _, spec := range schema {
		v.SetDefault(spec.key, spec.def)
	}

	fileExists := false
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileExists = true
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	s := &Store{
		path:   path,
		props:  make([]Property, 0, len(schema)),
		index:  make(map[string]int, len(schema)),
		saved:  fileExists,
		now:    time.Now,
		logger: logger,
	}
	for i, spec := range schema {
		raw := v.GetString(spec.key)
		if err := validateValue(spec, raw); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		s.props = append(s.props, Property{
			Key:          spec.key,
			FriendlyName: spec.friendly,
			Value:        raw,
			Display:      spec.display,
			Advanced:     spec.advanced,
		})
		s.index[spec.key] = i
	}

	if fileExists {
		s.appendLogLocked("config loaded from " + path)
	} else {
		s.appendLogLocked("no config file found, using defaults")
	}
	return s, nil
}

// Properties returns a copy of the schema with current values, in schema
// order.
func (s *Store) Properties() []Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Property, len(s.props))
	copy(out, s.props)
	return out
}

// Saved reports whether the durable file matches the in-memory values.
func (s *Store) Saved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved
}

// Path returns the durable file location.
func (s *Store) Path() string { return s.path }

// UpdateValue validates raw against the property's display type and applies
// it. On success the store becomes unsaved and an audit line records the
// transition; on failure nothing changes and no line is logged.
func (s *Store) UpdateValue(key, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return &ValidationError{Key: key, Value: raw, Reason: "unknown property"}
	}
	if err := validateValue(schema[i], raw); err != nil {
		s.logger.Warn("config value rejected",
			zap.String("key", key), zap.String("value", raw), zap.Error(err))
		return err
	}

	old := s.props[i].Value
	s.props[i].Value = raw
	s.saved = false
	s.appendLogLocked(fmt.Sprintf("config: %s %q -> %q", key, old, raw))
	s.logger.Info("config value updated",
		zap.String("key", key), zap.String("old", old), zap.String("new", raw))
	return nil
}

// Persist writes the property set to the durable file atomically: the full
// document is rendered to a temp file in the same directory and renamed
// over the target, so a crash can never leave a partial file behind.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return &PersistError{Path: s.path, Err: fmt.Errorf("no config path configured")}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, p := range s.props {
		switch p.Display {
		case DisplayNumber:
			n, _ := strconv.Atoi(strings.TrimSpace(p.Value))
			v.Set(p.Key, n)
		case DisplayBool:
			v.Set(p.Key, p.Value == "true")
		default:
			v.Set(p.Key, p.Value)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+".tmp.yaml")
	if err := v.WriteConfigAs(tmp); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &PersistError{Path: s.path, Err: err}
	}

	s.saved = true
	s.appendLogLocked("config persisted to " + s.path)
	s.logger.Info("config persisted", zap.String("path", s.path))
	return nil
}

// AppendLog records a line in the audit log. The engine and controller use
// this hook for run lifecycle events so settings changes and run history
// share one chronology.
func (s *Store) AppendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLogLocked(line)
}

// Log returns a copy of the audit log. It grows monotonically for the life
// of the process and is cleared only by restart.
func (s *Store) Log() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Store) appendLogLocked(line string) {
	stamped := s.now().UTC().Format(time.RFC3339) + " " + line
	s.log = append(s.log, stamped)
}

// Snapshot converts current values into the engine's typed parameters.
// Values are schema-validated on every write, so parsing cannot fail here.
func (s *Store) Snapshot() checker.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	get := func(key string) string { return s.props[s.index[key]].Value }
	num := func(key string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(get(key)))
		return n
	}

	return checker.Snapshot{
		EntryURLs:      splitList(get("entry_urls")),
		ScanPages:      splitList(get("scan_pages")),
		PDFPath:        get("pdf_path"),
		PDFURL:         get("pdf_url"),
		UserAgent:      get("user_agent"),
		Workers:        num("workers"),
		QueueDepth:     num("queue_depth"),
		ProbeTimeout:   time.Duration(num("probe_timeout_seconds")) * time.Second,
		MaxAttempts:    num("max_attempts"),
		BackoffInitial: time.Duration(num("backoff_initial_ms")) * time.Millisecond,
		BackoffMax:     time.Duration(num("backoff_max_ms")) * time.Millisecond,
		GracePeriod:    time.Duration(num("grace_period_seconds")) * time.Second,
		HostRPS:        num("host_rps"),
	}
}

// KeepLocalRecords reports the keep_local_records toggle.
func (s *Store) KeepLocalRecords() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props[s.index["keep_local_records"]].Value == "true"
}

// GenerateReport reports the gen_report toggle.
func (s *Store) GenerateReport() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props[s.index["gen_report"]].Value == "true"
}

// ReportDir returns the configured report output directory.
func (s *Store) ReportDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props[s.index["report_dir"]].Value
}
