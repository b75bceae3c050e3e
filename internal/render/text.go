package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/MimeLyc/study-assistant/internal/jobs"
)

// Text writes result as plain text: bullet points, quiz questions and
// flashcards, each in backend order and without omissions.
func Text(w io.Writer, result *jobs.Result, labels *Labels) error {
	if result == nil {
		return nil
	}
	bw := bufio.NewWriter(w)

	heading(bw, labels.T("Summary"))
	if len(result.BulletPoints) == 0 {
		fmt.Fprintf(bw, "  %s\n", labels.T("No items."))
	}
	for i, bp := range result.BulletPoints {
		fmt.Fprintf(bw, "%d. %s", i+1, bp.Point)
		if bp.ImportanceLevel != "" {
			fmt.Fprintf(bw, " [%s]", bp.ImportanceLevel)
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw)
	heading(bw, labels.T("Quiz"))
	if len(result.QuizQuestions) == 0 {
		fmt.Fprintf(bw, "  %s\n", labels.T("No items."))
	}
	for i, q := range result.QuizQuestions {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "%d. %s\n", i+1, q.Question)
		for _, opt := range q.Options() {
			fmt.Fprintf(bw, "   %s) %s\n", opt.Label, opt.Text)
		}
		fmt.Fprintf(bw, "   %s\n", labels.T("Correct answer: %s", q.CorrectAnswer))
		if q.Explanation != "" {
			fmt.Fprintf(bw, "   %s\n", labels.T("Explanation: %s", q.Explanation))
		}
	}

	fmt.Fprintln(bw)
	heading(bw, labels.T("Flashcards"))
	if len(result.Flashcards) == 0 {
		fmt.Fprintf(bw, "  %s\n", labels.T("No items."))
	}
	for i, fc := range result.Flashcards {
		fmt.Fprintf(bw, "%d. %s\n", i+1, fc.Front)
		fmt.Fprintf(bw, "   -> %s\n", fc.Back)
		if fc.Category != "" {
			fmt.Fprintf(bw, "   %s\n", labels.T("Category: %s", fc.Category))
		}
	}

	return bw.Flush()
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "== %s ==\n", title)
}

// JobLine is the one-line status used by the CLI list and status commands.
func JobLine(id string, status jobs.Status, detail string, labels *Labels) string {
	parts := []string{id, labels.Status(status)}
	if detail = strings.TrimSpace(detail); detail != "" {
		parts = append(parts, detail)
	}
	return strings.Join(parts, "\t")
}
