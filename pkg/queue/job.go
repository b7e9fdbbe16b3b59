package queue

import (
	"encoding/json"
	"strings"
)

// State is the externally visible lifecycle state of a job.
type State string

const (
	StatePending   State = "PENDING"
	StateActive    State = "ACTIVE"
	StateSuccess   State = "SUCCESS"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
	StateUnknown   State = "UNKNOWN"

	// StateEvery selects every stored job in List.
	StateEvery State = "EVERY"
)

// ParseStates parses a comma separated filter such as "SUCCESS,FAILED".
func ParseStates(s string) ([]State, error) {
	var states []State
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		switch st := State(part); st {
		case StatePending, StateActive, StateSuccess, StateFailed, StateEvery:
			states = append(states, st)
		default:
			return nil, queueErrors.New(ErrInvalidState).WithDetail("state", part)
		}
	}
	return states, nil
}

// Job is the document stored for every pushed job. The Queue that created
// it owns the record; workers only hold its id.
type Job struct {
	Class     string         `json:"class"`
	Vars      map[string]any `json:"vars"`
	Install   map[string]any `json:"install,omitempty"`
	Metadata  Metadata       `json:"metadata"`
	Output    any            `json:"output,omitempty"`
	Stats     map[string]any `json:"stats"`
	LastError string         `json:"last_error,omitempty"`
	Traceback string         `json:"traceback,omitempty"`
}

// Metadata is stamped by the queue at push time; Status is only filled in by List.
type Metadata struct {
	JobID  string `json:"jobid,omitempty"`
	Queue  string `json:"queue,omitempty"`
	System string `json:"system,omitempty"`
	User   string `json:"user,omitempty"`
	Status State  `json:"status,omitempty"`
}

// Project returns the top-level fields of the document named in fields.
func (j *Job) Project(fields []string) (map[string]any, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, queueErrors.NewWithCause(ErrMarshal, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, queueErrors.NewWithCause(ErrUnmarshal, err)
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

// Status is the point-in-time answer of Queue.Status. Step is nil until the
// handler reports one, and again after the job is finalized.
type Status struct {
	State State   `json:"state"`
	Step  *string `json:"step"`
}

func decodeJob(jobid string, raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, queueErrors.NewWithCause(ErrUnmarshal, err).WithDetail("jobid", jobid)
	}
	return &job, nil
}
