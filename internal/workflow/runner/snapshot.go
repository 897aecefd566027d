package runner

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// snapshotFileName is written into every run directory so `workflow resume`
// can rediscover a run's tasklist path and branch without the caller having
// to pass them back in by hand.
const snapshotFileName = "run-config.yaml"

// RunSnapshot is the run-config snapshot of spec.md §4.11's three-phase
// state machine, captured once the Execute phase starts so a later resume
// doesn't need to re-derive the tasklist path, branch, or base commit.
type RunSnapshot struct {
	TicketID            string    `yaml:"ticket_id"`
	BranchName          string    `yaml:"branch_name"`
	BaseCommit          string    `yaml:"base_commit"`
	TasklistPath        string    `yaml:"tasklist_path"`
	PlanPath            string    `yaml:"plan_path"`
	PlanningModel       string    `yaml:"planning_model"`
	ImplementationModel string    `yaml:"implementation_model"`
	MaxWorkers          int       `yaml:"max_workers"`
	FailFast            bool      `yaml:"fail_fast"`
	CreatedAt           time.Time `yaml:"created_at"`
}

// SaveSnapshot writes the snapshot into runDir as YAML, 0o644.
func SaveSnapshot(runDir string, snap RunSnapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runDir, snapshotFileName), data, 0o644)
}

// LoadSnapshot reads a previously saved snapshot back out of runDir.
func LoadSnapshot(runDir string) (RunSnapshot, error) {
	var snap RunSnapshot
	data, err := os.ReadFile(filepath.Join(runDir, snapshotFileName))
	if err != nil {
		return snap, err
	}
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}
