package domain

import (
	"encoding/json"
	"fmt"
)

// TaskAction is the closed set of task kinds carried on the extraction queue.
type TaskAction string

const (
	ActionExtractBatch TaskAction = "extract_batch"
)

// Task is one queue message: fetch `Count` match IDs for `PUUID` starting at
// offset `Start`. Delivery is at-least-once; duplicate processing is safe
// because of the matchId uniqueness constraint and the processed-flag gate.
type Task struct {
	Action        TaskAction `json:"action"`
	PUUID         string     `json:"puuid"`
	Start         int        `json:"start"`
	Count         int        `json:"count"`
	UpdateProfile bool       `json:"update_profile"`
}

// UnmarshalTask decodes a queue message, rejecting unknown actions so that
// handling downstream stays exhaustive.
func UnmarshalTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	switch t.Action {
	case ActionExtractBatch:
	default:
		return nil, fmt.Errorf("unknown task action %q", t.Action)
	}
	if t.PUUID == "" {
		return nil, fmt.Errorf("task missing puuid")
	}
	return &t, nil
}
