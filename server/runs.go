package server

import (
	"sync"

	"voicecleaner/model"
)

// RunState 运行状态
type RunState string

const (
	RunQueued   RunState = "queued"
	RunRunning  RunState = "running"
	RunFinished RunState = "finished"
	RunError    RunState = "error"
)

// RunStatus is the body of GET /api/runs/{id}.
type RunStatus struct {
	RunID   string            `json:"runId"`
	State   RunState          `json:"state"`
	Error   string            `json:"error,omitempty"`
	Summary *model.RunSummary `json:"summary,omitempty"`
}

// runStore keeps the status of runs started through the API. The oldest
// finished runs are evicted once limit is reached.
type runStore struct {
	mu    sync.Mutex
	runs  map[string]*RunStatus
	order []string
	limit int
}

func newRunStore(limit int) *runStore {
	if limit <= 0 {
		limit = 100
	}
	return &runStore{runs: make(map[string]*RunStatus), limit: limit}
}

func (s *runStore) queue(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = &RunStatus{RunID: runID, State: RunQueued}
	s.order = append(s.order, runID)
	s.evictLocked()
}

func (s *runStore) finish(runID string, summary *model.RunSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[runID]
	if !ok {
		st = &RunStatus{RunID: runID}
		s.runs[runID] = st
		s.order = append(s.order, runID)
	}
	st.Summary = summary
	st.State = RunFinished
	if err != nil {
		st.State = RunError
		st.Error = err.Error()
	}
	s.evictLocked()
}

func (s *runStore) get(runID string) (RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[runID]
	if !ok {
		return RunStatus{}, false
	}
	return *st, true
}

func (s *runStore) evictLocked() {
	for len(s.order) > s.limit {
		idx := -1
		for i, id := range s.order {
			if st := s.runs[id]; st == nil || st.State == RunFinished || st.State == RunError {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		delete(s.runs, s.order[idx])
		s.order = append(s.order[:idx], s.order[idx+1:]...)
	}
}
