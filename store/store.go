package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StoredState is the last successful output snapshot of one stage.
//
// In-memory backends return the value as it was written; persistent backends
// return json.RawMessage. Use Decode to read either uniformly.
type StoredState struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Store maps (pipeline identity, stage identity) to stored state.
//
// Implementations must serialize concurrent writes to the same key; writes
// to different keys do not contend. Get reports absence via the boolean, not
// an error.
type Store interface {
	Get(ctx context.Context, pipelineID, stageID string) (StoredState, bool, error)
	Put(ctx context.Context, pipelineID, stageID string, value any, ts time.Time) error
}

// Decode reads a stored value as T, handling both raw in-memory values and
// JSON-serialized persistent values.
func Decode[T any](st StoredState) (T, error) {
	var zero T
	switch v := st.Value.(type) {
	case T:
		return v, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("store: decode state: %w", err)
		}
		return out, nil
	case []byte:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("store: decode state: %w", err)
		}
		return out, nil
	default:
		return zero, fmt.Errorf("store: stored value is %T, not %T", st.Value, zero)
	}
}

func marshalValue(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: marshal state value: %w", err)
	}
	return data, nil
}

func stateKey(pipelineID, stageID string) string {
	return pipelineID + ":" + stageID
}
