package internal

import "time"

// TrainingRun records one training job: which direction and variant were
// trained, on how much data, and how it ended.
type TrainingRun struct {
	ID          string        `json:"id"`
	Direction   string        `json:"direction"`
	Variant     string        `json:"variant"`
	Iterations  int           `json:"iterations"`
	Pairs       int           `json:"pairs"`
	SourceVocab int           `json:"source_vocab"`
	TargetVocab int           `json:"target_vocab"`
	Duration    time.Duration `json:"duration"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)
