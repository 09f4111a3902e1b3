package collection_state

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/turbot/edgar-log-pipeline/filepaths"
)

type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusDone       StageStatus = "done"
	StatusFailed     StageStatus = "failed"
)

type StageState struct {
	Status    StageStatus `json:"status"`
	Artifact  string      `json:"artifact,omitempty"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Ledger records the status of every stage for a single date.
// It is persisted as JSON after every transition, with an atomic rename,
// so an interrupted run leaves either the previous or the new state on disk.
type Ledger struct {
	Mut sync.RWMutex `json:"-"`

	Date        string                 `json:"date"`
	ExecutionId string                 `json:"execution_id,omitempty"`
	Stages      map[string]*StageState `json:"stages"`

	// path to the serialised ledger JSON
	jsonPath string
	now      func() time.Time
}

// Load reads the ledger at path, or returns an empty ledger for date if there is none
func Load(path, date string) (*Ledger, error) {
	l := &Ledger{
		Date:     date,
		Stages:   make(map[string]*StageState),
		jsonPath: path,
		now:      time.Now,
	}

	// if there is a file at the path, load it
	jsonBytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger file %s: %w", path, err)
	}
	if l.Date != date {
		return nil, fmt.Errorf("ledger file %s is for %s, expected %s", path, l.Date, date)
	}
	if l.Stages == nil {
		l.Stages = make(map[string]*StageState)
	}
	return l, nil
}

// Status returns the recorded status of stage, pending if it has no entry
func (l *Ledger) Status(stage string) StageStatus {
	l.Mut.RLock()
	defer l.Mut.RUnlock()

	s, ok := l.Stages[stage]
	if !ok {
		return StatusPending
	}
	return s.Status
}

// HasEntry returns true if anything has been recorded for stage
func (l *Ledger) HasEntry(stage string) bool {
	l.Mut.RLock()
	defer l.Mut.RUnlock()

	_, ok := l.Stages[stage]
	return ok
}

func (l *Ledger) SetExecutionId(id string) {
	l.Mut.Lock()
	defer l.Mut.Unlock()
	l.ExecutionId = id
}

func (l *Ledger) MarkInProgress(stage, artifact string) error {
	return l.set(stage, &StageState{Status: StatusInProgress, Artifact: artifact})
}

func (l *Ledger) MarkDone(stage, artifact string) error {
	return l.set(stage, &StageState{Status: StatusDone, Artifact: artifact})
}

func (l *Ledger) MarkFailed(stage, artifact string, stageErr error) error {
	s := &StageState{Status: StatusFailed, Artifact: artifact}
	if stageErr != nil {
		s.Error = stageErr.Error()
	}
	return l.set(stage, s)
}

func (l *Ledger) set(stage string, s *StageState) error {
	l.Mut.Lock()
	s.UpdatedAt = l.now().UTC()
	l.Stages[stage] = s
	l.Mut.Unlock()

	return l.Save()
}

// Save writes the ledger to its file
func (l *Ledger) Save() error {
	l.Mut.RLock()
	jsonBytes, err := json.MarshalIndent(l, "", "  ")
	l.Mut.RUnlock()
	if err != nil {
		return err
	}
	if l.jsonPath == "" {
		return fmt.Errorf("ledger for %s has no path", l.Date)
	}

	return filepaths.WriteAtomic(l.jsonPath, func(w io.Writer) error {
		_, err := w.Write(jsonBytes)
		return err
	})
}
