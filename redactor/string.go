// Package redactor keeps secrets, like SMTP passwords, out of logs and API responses
package redactor

import (
	"encoding/json"
	"io"
	"runtime"
)

const (
	redacted = "REDACTED"

	// revealingFunc is the only caller allowed to marshal a String's secret
	revealingFunc = "github.com/johnstarich/uiwatch/redactor.(*Encoder).Encode"
	maxCallers    = 64
)

// String is a secret. It marshals to null and prints as REDACTED unless encoded with an Encoder.
type String string

// String implements fmt.Stringer. Use Reveal for the secret itself.
func (s String) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Reveal returns the secret
func (s String) Reveal() string {
	return string(s)
}

// MarshalJSON implements json.Marshaler
func (s String) MarshalJSON() ([]byte, error) {
	if !calledByEncoder() {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// Encoder writes JSON with secrets included. Only use it for output the operator asked to see, never over HTTP.
type Encoder json.Encoder

// NewEncoder creates an Encoder writing to 'w'
func NewEncoder(w io.Writer) *Encoder {
	return (*Encoder)(json.NewEncoder(w))
}

// Encode calls json.Encoder.Encode
func (e *Encoder) Encode(v interface{}) error {
	return (*json.Encoder)(e).Encode(v)
}

// SetIndent calls json.Encoder.SetIndent
func (e *Encoder) SetIndent(prefix, indent string) {
	(*json.Encoder)(e).SetIndent(prefix, indent)
}

// calledByEncoder walks the stack looking for Encoder.Encode. Crude, but json.Marshaler has no context parameter.
func calledByEncoder() bool {
	pcs := make([]uintptr, maxCallers)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])
	for {
		frame, more := frames.Next()
		if frame.Function == revealingFunc {
			return true
		}
		if !more {
			return false
		}
	}
}
