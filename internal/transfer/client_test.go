package transfer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/study-assistant/internal/jobs"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(&Config{BaseURL: baseURL, Timeout: 5})
	require.NoError(t, err)
	return client
}

func pdf(name string) File {
	return File{Name: name, Content: []byte("%PDF-1.4 " + name)}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(&Config{BaseURL: "http://backend:8000/", Timeout: 10})
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8000", client.BaseURL())
	assert.Equal(t, 10*time.Second, client.httpClient.Timeout)

	for _, cfg := range []*Config{
		nil,
		{},
		{BaseURL: "backend:8000", Timeout: 10},
		{BaseURL: "ftp://backend", Timeout: 10},
		{BaseURL: "http://backend", Timeout: 0},
	} {
		_, err := NewClient(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	}
}

func TestSubmit_ZeroFilesSendsNothing(t *testing.T) {
	backend, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)

	receipt, err := client.Submit(context.Background(), nil)

	require.ErrorIs(t, err, ErrNoFiles)
	assert.Nil(t, receipt)
	assert.Zero(t, backend.Requests())

	format, _ := jobs.UserMessage(err)
	assert.Equal(t, MsgNoFiles, format)
}

func TestSubmit_RejectsNonPDF(t *testing.T) {
	backend, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)

	_, err := client.Submit(context.Background(), []File{pdf("notes.pdf"), {Name: "notes.docx"}})

	require.ErrorIs(t, err, ErrNotPDF)
	assert.Contains(t, err.Error(), "notes.docx")
	assert.Zero(t, backend.Requests())
}

func TestSubmit_UploadsRepeatedFilesField(t *testing.T) {
	backend, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)

	receipt, err := client.Submit(context.Background(), []File{pdf("a.pdf"), pdf("B.PDF")})

	require.NoError(t, err)
	assert.NotEmpty(t, receipt.UUID)
	assert.Equal(t, jobs.StatusPending, receipt.Status)
	assert.Equal(t, "Processing started for 2 files", receipt.Message)
	uploads := backend.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, []string{"a.pdf", "B.PDF"}, uploads[0])

	ids := backend.RequestIDs()
	require.Len(t, ids, 1)
	_, err = uuid.Parse(ids[0])
	assert.NoError(t, err)
}

func TestStatus_ProcessingThenFinished(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	receipt, err := client.Submit(ctx, []File{pdf("bio.pdf")})
	require.NoError(t, err)

	job, err := client.Status(ctx, receipt.UUID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, job.Status)
	assert.Nil(t, job.Result)

	_, err = client.Status(ctx, receipt.UUID)
	require.NoError(t, err)
	job, err = client.Status(ctx, receipt.UUID)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusFinished, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Cells are units of life", job.Result.BulletPoints[0].Point)
	assert.Equal(t, "high", job.Result.BulletPoints[0].ImportanceLevel)
	assert.Equal(t, "B", job.Result.QuizQuestions[0].CorrectAnswer)
	assert.Equal(t, "biology", job.Result.Flashcards[0].Category)
}

func TestStatus_NotFoundIsTransportErrorWithDetail(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)

	_, err := client.Status(context.Background(), "missing")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusNotFound, transportErr.StatusCode)
	assert.Equal(t, "Summary not found", transportErr.Detail)

	format, args := jobs.UserMessage(err)
	assert.Equal(t, MsgServerDetail, format)
	assert.Equal(t, []any{"Summary not found"}, args)
}

func TestStatus_EmptyIdentifier(t *testing.T) {
	backend, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)

	_, err := client.Status(context.Background(), "")
	require.ErrorIs(t, err, jobs.ErrMissingIdentifier)
	assert.Zero(t, backend.Requests())
}

func TestStatus_SchemaViolationIsTransportError(t *testing.T) {
	tests := map[string]string{
		"missing status":  `{"uuid":"x"}`,
		"result is array": `{"status":"finished","result":[]}`,
		"bad quiz item":   `{"status":"finished","result":{"bullet_points":[],"quiz_questions":[{"question":"q"}],"flashcards":[]}}`,
		"not json":        `<html>oops</html>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Status(context.Background(), "x")
			var transportErr *TransportError
			require.ErrorAs(t, err, &transportErr)
			assert.Equal(t, "status", transportErr.Op)
		})
	}
}

func TestStatus_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(t, url).Status(context.Background(), "x")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, transportErr.StatusCode)
	format, _ := jobs.UserMessage(err)
	assert.Equal(t, jobs.MsgConnection, format)
}

func TestListThenDeleteRemovesIdentifier(t *testing.T) {
	_, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	first, err := client.Submit(ctx, []File{pdf("one.pdf")})
	require.NoError(t, err)
	second, err := client.Submit(ctx, []File{pdf("two.pdf")})
	require.NoError(t, err)

	list, err := client.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalReturned)
	assert.True(t, list.Contains(first.UUID))
	assert.Equal(t, second.UUID, list.Summaries[0].UUID)
	assert.Equal(t, []string{"two.pdf"}, list.Summaries[0].FilesNames)

	ack, err := client.Delete(ctx, first.UUID)
	require.NoError(t, err)
	assert.Contains(t, ack, "deleted successfully")

	list, err = client.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.False(t, list.Contains(first.UUID))
	assert.True(t, list.Contains(second.UUID))

	_, err = client.Delete(ctx, first.UUID)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusNotFound, transportErr.StatusCode)
}

func TestDelete_Acknowledgements(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		want        string
	}{
		{name: "plain text", contentType: "text/plain", status: http.StatusOK, body: "Summary abc deleted successfully\n", want: "Summary abc deleted successfully"},
		{name: "json message", contentType: "application/json", status: http.StatusOK, body: `{"message":"Summary abc deleted"}`, want: "Summary abc deleted"},
		{name: "no content", status: http.StatusNoContent, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/summaries/abc", r.URL.Path)
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ack, err := newTestClient(t, server.URL).Delete(context.Background(), "abc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ack)
		})
	}
}

func TestList_QueryParameters(t *testing.T) {
	backend, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)

	_, err := client.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "limit=50", backend.LastQuery())

	_, err = client.List(context.Background(), ListOptions{Limit: 5, StatusFilter: "error"})
	require.NoError(t, err)
	assert.Equal(t, "limit=5&status_filter=error", backend.LastQuery())
}

func TestHealth(t *testing.T) {
	_, server := newFakeBackend(t)
	require.NoError(t, newTestClient(t, server.URL).Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	err := newTestClient(t, down.URL).Health(context.Background())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
}

func TestPollerAgainstBackend(t *testing.T) {
	backend, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	receipt, err := client.Submit(ctx, []File{pdf("bio.pdf")})
	require.NoError(t, err)

	out := jobs.NewPoller(client, 5*time.Millisecond).Poll(ctx, receipt.UUID)
	require.True(t, out.Succeeded())
	assert.Len(t, out.Job.Result.Flashcards, 1)

	requests := backend.Requests()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, requests, backend.Requests())
}

func TestPollerAgainstBackend_ErrorStatus(t *testing.T) {
	backend, server := newFakeBackend(t)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	receipt, err := client.Submit(ctx, []File{pdf("bad.pdf")})
	require.NoError(t, err)
	backend.failJob(receipt.UUID, "Could not extract text")

	out := jobs.NewPoller(client, 5*time.Millisecond).Poll(ctx, receipt.UUID)
	var procErr *jobs.ProcessingError
	require.True(t, errors.As(out.Err, &procErr))
	assert.Equal(t, "Could not extract text", procErr.Message)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	files, err := LoadFiles(context.Background(), filepath.Join(dir, "b.pdf"), filepath.Join(dir, "a.pdf"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.pdf", files[0].Name)
	assert.Equal(t, []byte("a.pdf"), files[1].Content)

	_, err = LoadFiles(context.Background(), filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
}
