package evidence

import (
	"bytes"
	"encoding/json"
	"time"
)

// AuditKind tags one audit log entry (spec.md §4.8).
type AuditKind string

const (
	KindWorkflowStarted   AuditKind = "WorkflowStarted"
	KindStepCompleted     AuditKind = "StepCompleted"
	KindStepFailed        AuditKind = "StepFailed"
	KindWorkflowCompleted AuditKind = "WorkflowCompleted"
)

// AuditEvent is one line of a run's audit.log.
type AuditEvent struct {
	Kind         AuditKind `json:"kind"`
	At           time.Time `json:"at"`
	WorkflowName string    `json:"workflow_name,omitempty"`
	StepID       string    `json:"step_id,omitempty"`
	OutputHash   string    `json:"output_hash,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// AuditLog is the append-only sequence of AuditEvents a Runner's caller
// accumulates over one workflow run.
type AuditLog struct {
	Events []AuditEvent
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) WorkflowStarted(name string, at time.Time) {
	l.Events = append(l.Events, AuditEvent{Kind: KindWorkflowStarted, At: at, WorkflowName: name})
}

func (l *AuditLog) StepCompleted(stepID, outputHash string, at time.Time) {
	l.Events = append(l.Events, AuditEvent{Kind: KindStepCompleted, At: at, StepID: stepID, OutputHash: outputHash})
}

func (l *AuditLog) StepFailed(stepID string, err error, at time.Time) {
	l.Events = append(l.Events, AuditEvent{Kind: KindStepFailed, At: at, StepID: stepID, Error: err.Error()})
}

func (l *AuditLog) WorkflowCompleted(name string, at time.Time) {
	l.Events = append(l.Events, AuditEvent{Kind: KindWorkflowCompleted, At: at, WorkflowName: name})
}

// MarshalJSONL renders the log as newline-delimited JSON, one object
// per event, matching the teacher's line-oriented log file convention
// (internal/obslog writes one JSON object per log line too).
func (l *AuditLog) MarshalJSONL() ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range l.Events {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
