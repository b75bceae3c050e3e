package transfer

import (
	"fmt"

	"github.com/MimeLyc/study-assistant/internal/jobs"
)

// User-facing message formats, also used as catalog keys.
const (
	MsgNoFiles      = "Please select at least one PDF file."
	MsgNotPDF       = "Only PDF files are accepted."
	MsgServerDetail = "Server error: %s"
)

type inputError struct {
	text string
	msg  string
}

func (e *inputError) Error() string { return e.text }

func (e *inputError) UserMessage() (string, []any) { return e.msg, nil }

var (
	// ErrNoFiles is returned by Submit when there is nothing to upload.
	// No request is sent.
	ErrNoFiles error = &inputError{text: "no files to submit", msg: MsgNoFiles}
	// ErrNotPDF is returned for files without a .pdf extension.
	ErrNotPDF error = &inputError{text: "only PDF files are accepted", msg: MsgNotPDF}
)

// TransportError is any failure to get a usable answer from the backend:
// network errors, non-2xx statuses and malformed bodies.
type TransportError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport error"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessage surfaces the backend detail when there is one; otherwise the
// failure is reported as a connection problem.
func (e *TransportError) UserMessage() (string, []any) {
	if e.Detail != "" {
		return MsgServerDetail, []any{e.Detail}
	}
	return jobs.MsgConnection, nil
}
