// Package journal keeps an append-only JSONL record of every routing outcome,
// one line per terminal state, so moves can be traced after the fact.
package journal

import (
	"encoding/json"
	"time"
)

// SessionID identifies one run of the service (watch or scan).
type SessionID string

// RecordType is the kind of journal line.
type RecordType string

const (
	RecordSessionStart RecordType = "SESSION_START"
	RecordSessionEnd   RecordType = "SESSION_END"
	RecordOutcome      RecordType = "OUTCOME"
	RecordRotation     RecordType = "ROTATION"
)

// Record is a single journal line.
type Record struct {
	Timestamp       time.Time         `json:"timestamp"`
	Session         SessionID         `json:"session"`
	Type            RecordType        `json:"type"`
	State           string            `json:"state,omitempty"`
	Rule            string            `json:"rule,omitempty"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	DestinationPath string            `json:"destinationPath,omitempty"`
	Attempts        int               `json:"attempts,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Error           string            `json:"error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// MarshalJSONLine encodes the record without a trailing newline.
func (r Record) MarshalJSONLine() ([]byte, error) {
	return json.Marshal(r)
}

// Config holds journal settings.
type Config struct {
	Directory    string
	RotationSize int64 // rotate once the active file reaches this size; 0 disables
}

const (
	activeName    = "exportwatch-journal.jsonl"
	segmentPrefix = "exportwatch-journal-"
	segmentSuffix = ".jsonl"
)
