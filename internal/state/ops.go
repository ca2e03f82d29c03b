// Package state persists per-component operation counters and the daemon
// heartbeat to .waved/state/ops.yaml.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"waved/internal/lock"
	"waved/internal/model"
	atomicyaml "waved/internal/yaml"
)

const opsFileName = "ops.yaml"
const opsLockKey = "state/ops"

// DefaultMaxHistory bounds the recent-operations list in ops.yaml.
const DefaultMaxHistory = 50

// OpsFile is the on-disk shape of state/ops.yaml.
type OpsFile struct {
	SchemaVersion   int                   `yaml:"schema_version"`
	FileType        string                `yaml:"file_type"`
	Counters        map[string]int        `yaml:"counters"`
	LastResults     map[string]LastResult `yaml:"last_results"`
	History         []HistoryEntry        `yaml:"history"`
	DaemonHeartbeat *string               `yaml:"daemon_heartbeat"`
	UpdatedAt       *string               `yaml:"updated_at"`
}

// LastResult records the most recent operation per component.
type LastResult struct {
	OpID   string `yaml:"op_id"`
	Status string `yaml:"status"`
	At     string `yaml:"at"`
}

// HistoryEntry is one line of the bounded recent-operations history.
type HistoryEntry struct {
	Component string `yaml:"component"`
	OpID      string `yaml:"op_id"`
	Status    string `yaml:"status"`
	At        string `yaml:"at"`
}

// Store serializes all access to ops.yaml through a keyed mutex so the UDS
// handlers and the heartbeat ticker never interleave read-modify-write cycles.
type Store struct {
	wavedDir   string
	path       string
	locks      *lock.MutexMap
	maxHistory int
}

func NewStore(wavedDir string, locks *lock.MutexMap) *Store {
	if locks == nil {
		locks = lock.NewMutexMap()
	}
	return &Store{
		wavedDir:   wavedDir,
		path:       filepath.Join(wavedDir, "state", opsFileName),
		locks:      locks,
		maxHistory: DefaultMaxHistory,
	}
}

// SetMaxHistory overrides the history bound. Non-positive values are ignored.
func (s *Store) SetMaxHistory(n int) {
	if n > 0 {
		s.maxHistory = n
	}
}

func (s *Store) Path() string { return s.path }

// Init writes an empty ops file. Existing files are left alone.
func (s *Store) Init() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return atomicyaml.AtomicWrite(s.path, emptyOpsFile())
}

// RecordOp bumps the component's counter and remembers its latest operation.
func (s *Store) RecordOp(component, opID string, status model.Status) error {
	s.locks.Lock(opsLockKey)
	defer s.locks.Unlock(opsLockKey)

	ops, err := s.load()
	if err != nil {
		return err
	}

	ops.Counters[component]++
	now := time.Now().UTC().Format(time.RFC3339)
	ops.LastResults[component] = LastResult{
		OpID:   opID,
		Status: string(status),
		At:     now,
	}
	ops.History = append(ops.History, HistoryEntry{
		Component: component,
		OpID:      opID,
		Status:    string(status),
		At:        now,
	})
	if len(ops.History) > s.maxHistory {
		ops.History = ops.History[len(ops.History)-s.maxHistory:]
	}
	ops.UpdatedAt = &now

	return atomicyaml.AtomicWrite(s.path, ops)
}

// Heartbeat stamps the daemon liveness marker.
func (s *Store) Heartbeat() error {
	s.locks.Lock(opsLockKey)
	defer s.locks.Unlock(opsLockKey)

	ops, err := s.load()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	ops.DaemonHeartbeat = &now
	ops.UpdatedAt = &now

	return atomicyaml.AtomicWrite(s.path, ops)
}

// Snapshot returns a copy of the current ops file for status reporting.
func (s *Store) Snapshot() (OpsFile, error) {
	s.locks.Lock(opsLockKey)
	defer s.locks.Unlock(opsLockKey)
	return s.load()
}

// load reads ops.yaml, recovering through quarantine when the file is
// unusable. Recovery runs at most once; if the restored backup is unusable
// too the file is reset to a fresh skeleton rather than retried, so a bad
// backup can never wedge the store in a recovery loop.
func (s *Store) load() (OpsFile, error) {
	ops, err := s.read()
	if err == nil {
		return ops, nil
	}

	if recErr := atomicyaml.RecoverCorruptedFile(s.wavedDir, s.path, atomicyaml.FileTypeStateOps); recErr != nil {
		return OpsFile{}, fmt.Errorf("recover ops file: %w", recErr)
	}
	if ops, err = s.read(); err == nil {
		return ops, nil
	}

	if skelErr := atomicyaml.GenerateSkeleton(s.path, atomicyaml.FileTypeStateOps); skelErr != nil {
		return OpsFile{}, fmt.Errorf("reset ops file: %w", skelErr)
	}
	return s.read()
}

// read parses ops.yaml, rejecting files whose schema header does not match.
// A missing file is treated as empty rather than an error.
func (s *Store) read() (OpsFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return emptyOpsFile(), nil
	}
	if err != nil {
		return OpsFile{}, fmt.Errorf("read ops file: %w", err)
	}

	if err := atomicyaml.ValidateSchemaHeaderFromBytes(data, atomicyaml.FileTypeStateOps); err != nil {
		return OpsFile{}, fmt.Errorf("ops file header: %w", err)
	}

	var ops OpsFile
	if err := yamlv3.Unmarshal(data, &ops); err != nil {
		return OpsFile{}, fmt.Errorf("parse ops file: %w", err)
	}

	if ops.Counters == nil {
		ops.Counters = make(map[string]int)
	}
	if ops.LastResults == nil {
		ops.LastResults = make(map[string]LastResult)
	}
	return ops, nil
}

func emptyOpsFile() OpsFile {
	return OpsFile{
		SchemaVersion: atomicyaml.CurrentSchemaVersion,
		FileType:      atomicyaml.FileTypeStateOps,
		Counters:      make(map[string]int),
		LastResults:   make(map[string]LastResult),
	}
}
