package pipeline

import (
	"encoding/json"
	"time"

	"github.com/johnstarich/uiwatch/notify"
	"github.com/johnstarich/uiwatch/records"
)

// Maybe is a best-effort value. Reason says why it is absent.
type Maybe[T any] struct {
	Value  T
	Reason error
}

// Present returns true when the value was produced
func (m Maybe[T]) Present() bool {
	return m.Reason == nil
}

func present[T any](value T) Maybe[T] {
	return Maybe[T]{Value: value}
}

func absent[T any](reason error) Maybe[T] {
	return Maybe[T]{Reason: reason}
}

// MarshalJSON reports either the value or the reason it is absent
func (m Maybe[T]) MarshalJSON() ([]byte, error) {
	if !m.Present() {
		return json.Marshal(struct {
			Reason string `json:"reason"`
		}{Reason: m.Reason.Error()})
	}
	return json.Marshal(struct {
		Value T `json:"value"`
	}{Value: m.Value})
}

// Outcome is a test's result
type Outcome string

// Test outcomes
const (
	Passed Outcome = "passed"
	Failed Outcome = "failed"
)

// Report describes what the pipeline captured and sent for one finished test
type Report struct {
	Test     Test      `json:"test"`
	Outcome  Outcome   `json:"outcome"`
	Env      string    `json:"env"`
	Severity string    `json:"severity"`
	Time     time.Time `json:"time"`
	Steps    []string  `json:"steps"`

	Screenshot     Maybe[[]byte] `json:"-"`
	ScreenshotPath Maybe[string] `json:"screenshot_path"`
	Recording      Maybe[string] `json:"recording"`

	Subject  string        `json:"subject,omitempty"`
	HTML     string        `json:"-"`
	Delivery notify.Result `json:"-"`
	// Panic is set when assembling the report panicked
	Panic error `json:"-"`
}

// Records returns the report's evidence for attaching to the test's error
func (r Report) Records() []records.Record {
	var recs []records.Record
	if r.Screenshot.Present() && len(r.Screenshot.Value) > 0 {
		recs = append(recs, records.Screenshot(r.Screenshot.Value))
	}
	if len(r.Steps) > 0 {
		recs = append(recs, records.Steps(r.Steps))
	}
	if r.Recording.Present() {
		recs = append(recs, records.Recording(r.Recording.Value))
	}
	return recs
}
