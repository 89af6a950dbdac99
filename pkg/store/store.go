// Package store owns the on-disk artifact tree: one directory per project
// holding the project record, the seed brief, the latest-wins status blob,
// the append-only event journal, current step artifacts with human-readable
// siblings, and versioned snapshots of prior artifacts.
//
// All publishes are atomic (temp file + fsync + rename + directory fsync) so
// readers, including a process restarted mid-write, never observe a partial
// artifact. The store is the single writer for artifact files; the event
// journal additionally tolerates concurrent in-process appends via a
// per-project mutex.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/novelforge/novelforge/pkg/models"
	"github.com/novelforge/novelforge/pkg/pipeline"
)

// readRetryDelay is the pause before the single retry on a transient
// artifact read failure.
const readRetryDelay = 50 * time.Millisecond

// Store is the filesystem project store rooted at one data directory.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	logMu map[string]*sync.Mutex
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &Store{
		root:   dir,
		logger: slog.With("component", "store"),
		logMu:  make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the store's data directory.
func (s *Store) Root() string {
	return s.root
}

// Exists reports whether a project directory is present.
func (s *Store) Exists(projectID string) bool {
	info, err := os.Stat(s.projectDir(projectID))
	return err == nil && info.IsDir()
}

// --- Project lifecycle ---

// Create writes the project record, the seed brief, and the initial status
// blob. Fails with ErrAlreadyExists when the project directory is present.
func (s *Store) Create(p *models.Project, seed string) error {
	dir := s.projectDir(p.ID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("project %s: %w", p.ID, ErrAlreadyExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat project directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	if err := s.SaveProject(p); err != nil {
		return err
	}

	brief, err := json.MarshalIndent(models.SeedBrief{Brief: seed}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seed brief: %w", err)
	}
	if err := writeFileAtomic(s.briefPath(p.ID), brief); err != nil {
		return fmt.Errorf("failed to write seed brief: %w", err)
	}

	if err := s.WriteStatus(p); err != nil {
		return err
	}

	s.logger.Info("Created project", "project_id", p.ID, "name", p.Name)
	return nil
}

// Load reconstructs a project from disk. The project record supplies
// identity and status; the completed set is rebuilt by scanning which
// current artifact files are actually present, so state survives restarts
// and stays truthful even after a crash between artifact write and record
// update.
func (s *Store) Load(projectID string) (*models.Project, error) {
	raw, err := s.readFileRetry(s.projectPath(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project record: %w", err)
	}

	var p models.Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode project record: %w", err)
	}

	var completed []int
	current := 0
	for i := 0; i < pipeline.Count(); i++ {
		if s.HasArtifact(projectID, i) {
			completed = append(completed, i)
			current = i
		}
	}
	p.CompletedSteps = completed
	p.CurrentStep = current

	return &p, nil
}

// SaveProject atomically replaces project.json.
func (s *Store) SaveProject(p *models.Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project record: %w", err)
	}
	if err := writeFileAtomic(s.projectPath(p.ID), data); err != nil {
		return fmt.Errorf("failed to write project record: %w", err)
	}
	return nil
}

// WriteStatus atomically replaces the latest-wins status blob.
func (s *Store) WriteStatus(p *models.Project) error {
	snap := models.StatusSnapshot{
		ProjectID:      p.ID,
		Name:           p.Name,
		Status:         p.Status,
		CurrentStep:    p.CurrentStep,
		CompletedSteps: p.CompletedSteps,
		UpdatedAt:      time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status snapshot: %w", err)
	}
	if err := writeFileAtomic(s.statusPath(p.ID), data); err != nil {
		return fmt.Errorf("failed to write status snapshot: %w", err)
	}
	return nil
}

// ReadStatus returns the persisted status snapshot.
func (s *Store) ReadStatus(projectID string) (*models.StatusSnapshot, error) {
	raw, err := s.readFileRetry(s.statusPath(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status snapshot: %w", err)
	}
	var snap models.StatusSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode status snapshot: %w", err)
	}
	return &snap, nil
}

// ReadBrief returns the seed text the project was created with.
func (s *Store) ReadBrief(projectID string) (string, error) {
	raw, err := s.readFileRetry(s.briefPath(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read seed brief: %w", err)
	}
	var brief models.SeedBrief
	if err := json.Unmarshal(raw, &brief); err != nil {
		return "", fmt.Errorf("failed to decode seed brief: %w", err)
	}
	return brief.Brief, nil
}

// List returns the IDs of every project under the store root.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list store root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), projectFile)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// --- Artifacts ---

// HasArtifact reports whether a current artifact file exists for the step.
func (s *Store) HasArtifact(projectID string, step int) bool {
	_, err := os.Stat(s.artifactPath(projectID, step))
	return err == nil
}

// ReadArtifact reads and shape-checks the current artifact for a step.
// Returns ErrArtifactMissing when absent and ErrArtifactCorrupt when the
// file exists but is not a usable envelope.
func (s *Store) ReadArtifact(projectID string, step int) (*models.Envelope, error) {
	raw, err := s.readFileRetry(s.artifactPath(projectID, step))
	if errors.Is(err, fs.ErrNotExist) {
		if !s.Exists(projectID) {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("step %d (%s): %w", step, pipeline.Name(step), ErrArtifactMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact for step %d: %w", step, err)
	}

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("step %d: %w: %v", step, ErrArtifactCorrupt, err)
	}
	if env.Version <= 0 || env.ContentHash == "" || len(env.Payload) == 0 {
		return nil, fmt.Errorf("step %d: %w: envelope shape check failed", step, ErrArtifactCorrupt)
	}
	return &env, nil
}

// WriteArtifact atomically publishes a new artifact envelope plus its
// human-readable sibling. Any existing artifact for the step is first
// preserved under snapshots/ (skipped when its content already matches the
// latest snapshot, so explicit pre-snapshots never double up).
func (s *Store) WriteArtifact(projectID string, env *models.Envelope, humanText string) error {
	if !s.Exists(projectID) {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}

	if s.HasArtifact(projectID, env.Step) {
		if _, err := s.SnapshotArtifact(projectID, env.Step); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact envelope: %w", err)
	}
	if err := writeFileAtomic(s.artifactPath(projectID, env.Step), data); err != nil {
		return fmt.Errorf("failed to write artifact for step %d: %w", env.Step, err)
	}

	if humanText != "" {
		if err := writeFileAtomic(s.humanPath(projectID, env.Step), []byte(humanText)); err != nil {
			return fmt.Errorf("failed to write human-readable sibling for step %d: %w", env.Step, err)
		}
	}
	return nil
}

// SnapshotArtifact copies the current artifact for a step into the next
// numbered snapshot slot and returns that version. When the current content
// hash already matches the newest snapshot, no new file is written and the
// existing version is returned. Fails with ErrArtifactMissing when the step
// has no current artifact.
func (s *Store) SnapshotArtifact(projectID string, step int) (int, error) {
	raw, err := s.readFileRetry(s.artifactPath(projectID, step))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("step %d: %w", step, ErrArtifactMissing)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read artifact for snapshot: %w", err)
	}

	latest, latestHash, err := s.latestSnapshot(projectID, step)
	if err != nil {
		return 0, err
	}
	if latest > 0 {
		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.ContentHash == latestHash {
			return latest, nil
		}
	}

	if err := os.MkdirAll(s.snapshotDir(projectID), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	version := latest + 1
	if err := writeFileAtomic(s.snapshotPath(projectID, step, version), raw); err != nil {
		return 0, fmt.Errorf("failed to write snapshot v%d for step %d: %w", version, step, err)
	}

	s.logger.Info("Snapshotted artifact", "project_id", projectID, "step", step, "version", version)
	return version, nil
}

// RetireArtifact moves the current artifact for a step into snapshots/ and
// removes it from the current set. Used by downstream invalidation: the
// artifact is retained as history but no longer counts as completed.
// Returns the snapshot version holding the retired content.
func (s *Store) RetireArtifact(projectID string, step int) (int, error) {
	version, err := s.SnapshotArtifact(projectID, step)
	if err != nil {
		return 0, err
	}

	if err := os.Remove(s.artifactPath(projectID, step)); err != nil {
		return 0, fmt.Errorf("failed to retire artifact for step %d: %w", step, err)
	}
	if err := os.Remove(s.humanPath(projectID, step)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("failed to retire human-readable sibling for step %d: %w", step, err)
	}
	if err := syncDir(s.projectDir(projectID)); err != nil {
		return 0, err
	}

	s.logger.Info("Retired artifact", "project_id", projectID, "step", step, "snapshot_version", version)
	return version, nil
}

// latestSnapshot returns the highest snapshot version for a step and the
// content hash recorded inside it; (0, "") when none exist.
func (s *Store) latestSnapshot(projectID string, step int) (int, string, error) {
	entries, err := os.ReadDir(s.snapshotDir(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to list snapshots: %w", err)
	}

	prefix := fmt.Sprintf("step_%d_v", step)
	latest := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"))
		if err != nil || v <= latest {
			continue
		}
		latest = v
	}
	if latest == 0 {
		return 0, "", nil
	}

	raw, err := os.ReadFile(s.snapshotPath(projectID, step, latest))
	if err != nil {
		return latest, "", nil
	}
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return latest, "", nil
	}
	return latest, env.ContentHash, nil
}

// readFileRetry reads a file, retrying once after a short delay on any
// error other than not-exist.
func (s *Store) readFileRetry(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return raw, err
	}
	s.logger.Warn("Transient read error, retrying once", "path", path, "error", err)
	time.Sleep(readRetryDelay)
	return os.ReadFile(path)
}
