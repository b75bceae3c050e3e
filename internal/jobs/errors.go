package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingIdentifier is returned when there is no job to poll.
	ErrMissingIdentifier = errors.New("no job identifier")
	// ErrPollLimit is returned when the configured attempt limit is reached
	// before the job reaches a terminal status.
	ErrPollLimit = errors.New("poll attempt limit reached")
)

// DefaultProcessingMessage is used when the backend reports an error
// without a message.
const DefaultProcessingMessage = "Processing failed."

// User-facing message formats. They double as message catalog keys.
const (
	MsgNoIdentifier = "No identifier found. Please upload a file first."
	MsgConnection   = "Error connecting to the server."
	MsgPollLimit    = "The job is taking too long. Please try again later."
	MsgProcessing   = "Processing error: %s"
)

// Describer is implemented by errors that carry their own user-facing
// message format and arguments.
type Describer interface {
	UserMessage() (format string, args []any)
}

// UserMessage maps err to the single plain message shown to the user, as a
// format plus arguments so callers can localize it.
func UserMessage(err error) (string, []any) {
	var (
		procErr *ProcessingError
		desc    Describer
	)
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, ErrMissingIdentifier):
		return MsgNoIdentifier, nil
	case errors.Is(err, ErrPollLimit):
		return MsgPollLimit, nil
	case errors.As(err, &procErr):
		if procErr.Message == DefaultProcessingMessage {
			return DefaultProcessingMessage, nil
		}
		return MsgProcessing, []any{procErr.Message}
	case errors.As(err, &desc):
		return desc.UserMessage()
	default:
		return MsgConnection, nil
	}
}

// ProcessingError is the backend reporting a job as failed.
type ProcessingError struct {
	JobID   string
	Message string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("job %s: %s", e.JobID, e.Message)
}

func newProcessingError(job *Job) *ProcessingError {
	msg := job.ErrorMessage
	if msg == "" {
		msg = DefaultProcessingMessage
	}
	return &ProcessingError{JobID: job.ID, Message: msg}
}

// FailureNotice is the stored user message of a failure: a message format
// and its arguments.
type FailureNotice struct {
	Format string   `json:"format"`
	Args   []string `json:"args,omitempty"`
}

// NoticeFor captures the user message of err. Backend processing errors
// return nil since the job's error message already describes them.
func NoticeFor(err error) *FailureNotice {
	var procErr *ProcessingError
	if err == nil || errors.As(err, &procErr) {
		return nil
	}
	format, args := UserMessage(err)
	notice := &FailureNotice{Format: format}
	for _, arg := range args {
		notice.Args = append(notice.Args, fmt.Sprint(arg))
	}
	return notice
}

type noticeError struct {
	jobID  string
	notice FailureNotice
}

func (e *noticeError) Error() string {
	format, args := e.UserMessage()
	return fmt.Sprintf("job %s: %s", e.jobID, fmt.Sprintf(format, args...))
}

func (e *noticeError) UserMessage() (string, []any) {
	args := make([]any, len(e.notice.Args))
	for i, arg := range e.notice.Args {
		args[i] = arg
	}
	return e.notice.Format, args
}
