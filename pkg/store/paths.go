package store

import (
	"fmt"
	"path/filepath"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

// Per-project file names.
const (
	projectFile  = "project.json"
	briefFile    = "initial_brief.json"
	statusFile   = "status.json"
	eventLogFile = "events.log"
	snapshotsDir = "snapshots"
)

func (s *Store) projectDir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

func (s *Store) projectPath(projectID string) string {
	return filepath.Join(s.projectDir(projectID), projectFile)
}

func (s *Store) briefPath(projectID string) string {
	return filepath.Join(s.projectDir(projectID), briefFile)
}

func (s *Store) statusPath(projectID string) string {
	return filepath.Join(s.projectDir(projectID), statusFile)
}

func (s *Store) eventLogPath(projectID string) string {
	return filepath.Join(s.projectDir(projectID), eventLogFile)
}

func (s *Store) artifactPath(projectID string, step int) string {
	return filepath.Join(s.projectDir(projectID), artifactFileName(step))
}

func (s *Store) humanPath(projectID string, step int) string {
	return filepath.Join(s.projectDir(projectID), fmt.Sprintf("step_%d_%s.txt", step, pipeline.Name(step)))
}

func (s *Store) snapshotDir(projectID string) string {
	return filepath.Join(s.projectDir(projectID), snapshotsDir)
}

func (s *Store) snapshotPath(projectID string, step, version int) string {
	return filepath.Join(s.snapshotDir(projectID), fmt.Sprintf("step_%d_v%d.json", step, version))
}

// artifactFileName returns the canonical artifact file name for a step,
// e.g. "step_3_characters.json".
func artifactFileName(step int) string {
	return fmt.Sprintf("step_%d_%s.json", step, pipeline.Name(step))
}
