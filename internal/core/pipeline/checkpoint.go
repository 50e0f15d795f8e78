package pipeline

import (
	"encoding/json"
	"sync"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

// Stage names the pipeline states. Transitions are unconditional except at
// StageRoute, the only branch point.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageExtract   Stage = "extract"
	StageClassify  Stage = "classify"
	StageRoute     Stage = "route"
	StagePlan      Stage = "plan"
	StageRetrieve  Stage = "retrieve"
	StageAnalyze   Stage = "analyze"
	StageAnswer    Stage = "answer"
	StageEnd       Stage = "end"
)

// Checkpoint records the next stage to run and the state as of the last
// completed stage. Identity pins the checkpoint to the caller that created
// it; a resume under any other identity or scope must discard it.
type Checkpoint struct {
	Stage    Stage
	Identity string
	State    *domain.RequestState
}

// CheckpointStore keeps per-conversation pipeline checkpoints for the
// process lifetime. Concurrent requests for different conversation ids
// never share state; cross-process durability is out of scope.
type CheckpointStore struct {
	mu      sync.Mutex
	entries map[string]Checkpoint
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{entries: make(map[string]Checkpoint)}
}

func (s *CheckpointStore) Save(conversationID string, cp Checkpoint) {
	snapshot := copyState(cp.State)
	if snapshot == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conversationID] = Checkpoint{Stage: cp.Stage, Identity: cp.Identity, State: snapshot}
}

func (s *CheckpointStore) Load(conversationID string) (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.entries[conversationID]
	if !ok {
		return Checkpoint{}, false
	}
	return Checkpoint{Stage: cp.Stage, Identity: cp.Identity, State: copyState(cp.State)}, true
}

func (s *CheckpointStore) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversationID)
}

// copyState deep-copies through JSON so a resumed run never aliases a
// checkpointed snapshot.
func copyState(state *domain.RequestState) *domain.RequestState {
	if state == nil {
		return nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil
	}
	var out domain.RequestState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}
