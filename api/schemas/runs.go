package schemas

import (
	"time"
)

// -- Run Schemas --

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusPassed  RunStatus = "passed"
	StatusFailed  RunStatus = "failed"
	StatusError   RunStatus = "error"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether a run may move from s to next. Runs go
// pending → running → terminal; a pending run may also end in error without
// ever running.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusError
	case StatusRunning:
		return next.Terminal()
	}
	return false
}

// RunRequest is the inbound contract of a run. Exactly one scenario form is
// used, in this precedence: Document, Instructions, Steps, Given/When/Then.
type RunRequest struct {
	TargetURL    string   `json:"target_url" yaml:"target_url"`
	Steps        []string `json:"steps,omitempty" yaml:"steps,omitempty"`
	Given        string   `json:"given,omitempty" yaml:"given,omitempty"`
	When         string   `json:"when,omitempty" yaml:"when,omitempty"`
	Then         string   `json:"then,omitempty" yaml:"then,omitempty"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Document     string   `json:"document,omitempty" yaml:"document,omitempty"`
}

// RunResponse is the outbound contract of a run.
type RunResponse struct {
	Success bool      `json:"success"`
	Output  string    `json:"output"`
	ID      string    `json:"id"`
	Status  RunStatus `json:"status"`
}

// RunRecord tracks one scenario of a batch.
type RunRecord struct {
	ID         string     `json:"id"`
	Title      string     `json:"title,omitempty"`
	Status     RunStatus  `json:"status"`
	Log        string     `json:"log,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// -- Parse Schemas --

// ParseRequest asks for free text to be turned into structured steps.
type ParseRequest struct {
	Text string `json:"text"`
}

// ParsedInstruction is one parsed input line.
type ParsedInstruction struct {
	OriginalText   string `json:"original_text"`
	Recognized     bool   `json:"recognized"`
	StructuredStep string `json:"structured_step,omitempty"`
}

// ParseResponse lists the instructions in input order.
type ParseResponse struct {
	Instructions []ParsedInstruction `json:"instructions"`
	Recognized   bool                `json:"recognized"`
}

// -- Scenario Library Schemas --

// LibraryEntry is one precomposed scenario of a batch library file. The
// placeholder {URL} in any step is replaced by the batch target URL.
type LibraryEntry struct {
	ID    string   `json:"id" yaml:"id"`
	Title string   `json:"title" yaml:"title"`
	Given string   `json:"given,omitempty" yaml:"given,omitempty"`
	When  string   `json:"when,omitempty" yaml:"when,omitempty"`
	Then  string   `json:"then,omitempty" yaml:"then,omitempty"`
	Steps []string `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
