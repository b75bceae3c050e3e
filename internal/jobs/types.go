package jobs

import (
	"encoding/json"
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusFinished Status = "finished"
	StatusError    Status = "error"
)

// IsTerminal returns true for statuses after which no transition occurs.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusError
}

// NormalizeStatus maps a backend wire status onto the three job states.
// Anything that is not finished or error is still in flight.
func NormalizeStatus(wire string) Status {
	switch strings.ToLower(strings.TrimSpace(wire)) {
	case string(StatusFinished):
		return StatusFinished
	case string(StatusError):
		return StatusError
	default:
		return StatusPending
	}
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NormalizeStatus(raw)
	return nil
}

type BulletPoint struct {
	Point           string `json:"point"`
	ImportanceLevel string `json:"importance_level,omitempty"`
}

type QuizQuestion struct {
	Question      string `json:"question"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

// Option is one labelled answer of a quiz question.
type Option struct {
	Label string
	Text  string
}

// Options returns the four answers labelled A to D, in order.
func (q QuizQuestion) Options() []Option {
	return []Option{
		{Label: "A", Text: q.OptionA},
		{Label: "B", Text: q.OptionB},
		{Label: "C", Text: q.OptionC},
		{Label: "D", Text: q.OptionD},
	}
}

// CorrectOption returns the option matching CorrectAnswer, compared
// case-insensitively on the label.
func (q QuizQuestion) CorrectOption() (Option, bool) {
	label := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	for _, opt := range q.Options() {
		if opt.Label == label {
			return opt, true
		}
	}
	return Option{}, false
}

type Flashcard struct {
	Front    string `json:"front"`
	Back     string `json:"back"`
	Category string `json:"category,omitempty"`
}

// Result is the payload of a finished job. Collections keep backend order.
type Result struct {
	BulletPoints  []BulletPoint  `json:"bullet_points"`
	QuizQuestions []QuizQuestion `json:"quiz_questions"`
	Flashcards    []Flashcard    `json:"flashcards"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Job is the client view of one backend processing unit.
type Job struct {
	ID           string  `json:"uuid"`
	Status       Status  `json:"status"`
	Result       *Result `json:"result,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// SubmitReceipt is the backend answer to an upload.
type SubmitReceipt struct {
	UUID      string `json:"uuid"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Summary is one entry of the backend result listing.
type Summary struct {
	UUID         string   `json:"uuid"`
	Status       Status   `json:"status"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	FilesCount   int      `json:"files_count"`
	FilesNames   []string `json:"files_names,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

type SummaryList struct {
	Summaries      []Summary         `json:"summaries"`
	TotalReturned  int               `json:"total_returned"`
	FiltersApplied map[string]string `json:"filters_applied,omitempty"`
}

// Contains reports whether a summary with the given identifier is listed.
func (l *SummaryList) Contains(id string) bool {
	if l == nil {
		return false
	}
	for _, s := range l.Summaries {
		if s.UUID == id {
			return true
		}
	}
	return false
}

// TrackedJob is a job followed by the Tracker, with local bookkeeping.
type TrackedJob struct {
	Job
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	CheckedAt time.Time `json:"checked_at"`
	// Notice is set for failures the backend did not report itself.
	Notice *FailureNotice `json:"failure,omitempty"`

	err error
}

// Failure returns the error that ended the poll cycle, or nil unless the
// job is in the error status. Snapshots restored from storage rebuild it
// from Notice or the backend message.
func (j *TrackedJob) Failure() error {
	if j.Status != StatusError {
		return nil
	}
	if j.err != nil {
		return j.err
	}
	if j.Notice != nil {
		return &noticeError{jobID: j.ID, notice: *j.Notice}
	}
	return newProcessingError(&j.Job)
}

func cloneTracked(job *TrackedJob) *TrackedJob {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.Notice != nil {
		notice := *job.Notice
		notice.Args = append([]string(nil), job.Notice.Args...)
		tmp.Notice = &notice
	}
	return &tmp
}
