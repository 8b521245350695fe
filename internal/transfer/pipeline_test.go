package transfer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mirrorsync/internal/domain"
	"mirrorsync/internal/remote"
)

func testPipeline(t *testing.T, serverURL, destRoot string, opts Options) *Pipeline {
	t.Helper()

	client, err := remote.NewClient(serverURL, remote.Options{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return NewPipeline(client, destRoot, opts)
}

// runOne pushes a single action through the pipeline and returns its result
func runOne(t *testing.T, p *Pipeline, action domain.SyncAction) domain.TransferResult {
	t.Helper()

	actions := make(chan domain.SyncAction, 1)
	actions <- action
	close(actions)

	var results []domain.TransferResult
	for result := range p.Run(context.Background(), actions) {
		results = append(results, result)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	return results[0]
}

func TestDownloadWritesFile(t *testing.T) {
	content := "the file body"
	lastModified := time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
		io.WriteString(w, content)
	}))
	defer server.Close()

	dest := t.TempDir()
	p := testPipeline(t, server.URL, dest, Options{})

	result := runOne(t, p, domain.SyncAction{
		Type:         domain.ActionDownload,
		Path:         "games/sonic.zip",
		ExpectedSize: int64(len(content)),
	})

	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s (err: %v)", result.Outcome, result.Err)
	}
	if result.Bytes != int64(len(content)) {
		t.Errorf("expected %d bytes, got %d", len(content), result.Bytes)
	}

	dst := filepath.Join(dest, "games", "sonic.zip")
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("destination file missing: %v", err)
	}
	if string(data) != content {
		t.Errorf("unexpected content %q", data)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if !info.ModTime().Equal(lastModified) {
		t.Errorf("expected mtime %v, got %v", lastModified, info.ModTime())
	}

	if _, err := os.Stat(dst + tmpSuffix); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestDownloadRetriesTransientFailure(t *testing.T) {
	content := "eventually fine"
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, content)
	}))
	defer server.Close()

	p := testPipeline(t, server.URL, t.TempDir(), Options{Retries: 3})
	result := runOne(t, p, domain.SyncAction{Type: domain.ActionDownload, Path: "flaky.bin"})

	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected success after retries, got %s (err: %v)", result.Outcome, result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestDownloadDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := t.TempDir()
	p := testPipeline(t, server.URL, dest, Options{Retries: 3})
	result := runOne(t, p, domain.SyncAction{Type: domain.ActionDownload, Path: "gone.bin"})

	if result.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failure, got %s", result.Outcome)
	}
	if !errors.Is(result.Err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", result.Err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single attempt for a 404, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "gone.bin")); !os.IsNotExist(err) {
		t.Errorf("failed transfer left a destination file")
	}
}

func TestDownloadSizeMismatchRemovesTemp(t *testing.T) {
	// Lie about Content-Length so the body verifies short
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort")
		conn.Close()
	}))
	defer server.Close()

	dest := t.TempDir()
	p := testPipeline(t, server.URL, dest, Options{Retries: 1})
	result := runOne(t, p, domain.SyncAction{Type: domain.ActionDownload, Path: "truncated.bin"})

	if result.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failure, got %s", result.Outcome)
	}
	if result.Attempts != 2 {
		t.Errorf("a short body should be retried, got %d attempts", result.Attempts)
	}

	if _, err := os.Stat(filepath.Join(dest, "truncated.bin")); !os.IsNotExist(err) {
		t.Errorf("truncated transfer reached the final path")
	}
	if _, err := os.Stat(filepath.Join(dest, "truncated.bin"+tmpSuffix)); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestSizeHintVerifiesWhenContentLengthAbsent(t *testing.T) {
	content := "exactly-19-bytes-xx"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response, no Content-Length
		w.Header().Set("Transfer-Encoding", "chunked")
		w.(http.Flusher).Flush()
		io.WriteString(w, content)
	}))
	defer server.Close()

	dest := t.TempDir()
	p := testPipeline(t, server.URL, dest, Options{Retries: 0})

	// Wrong hint fails verification
	result := runOne(t, p, domain.SyncAction{
		Type:         domain.ActionDownload,
		Path:         "hinted.bin",
		ExpectedSize: int64(len(content)) + 1,
	})
	if result.Outcome != domain.OutcomeFailed || !errors.Is(result.Err, domain.ErrSizeMismatch) {
		t.Fatalf("expected size mismatch, got %s (err: %v)", result.Outcome, result.Err)
	}

	// Unknown hint accepts whatever arrived
	result = runOne(t, p, domain.SyncAction{
		Type:         domain.ActionDownload,
		Path:         "unhinted.bin",
		ExpectedSize: domain.SizeUnknown,
	})
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected success without a hint, got %s (err: %v)", result.Outcome, result.Err)
	}
}

func TestSkipAndAlreadyExistsBypassNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request for %s", r.URL.Path)
	}))
	defer server.Close()

	p := testPipeline(t, server.URL, t.TempDir(), Options{})

	result := runOne(t, p, domain.SyncAction{Type: domain.ActionSkip, Path: "excluded.zip"})
	if result.Outcome != domain.OutcomeSkipped {
		t.Errorf("expected skipped, got %s", result.Outcome)
	}

	result = runOne(t, p, domain.SyncAction{Type: domain.ActionAlreadyExists, Path: "present.bin"})
	if result.Outcome != domain.OutcomeAlreadyPresent {
		t.Errorf("expected already present, got %s", result.Outcome)
	}
}

func TestRefreshSendsConditionalGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Modified-Since") == "" {
			t.Error("expected a conditional request")
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	dest := t.TempDir()
	path := filepath.Join(dest, "present.bin")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatalf("failed to seed local file: %v", err)
	}
	mtime := time.Date(2024, 2, 2, 2, 2, 2, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}

	p := testPipeline(t, server.URL, dest, Options{Refresh: true})
	result := runOne(t, p, domain.SyncAction{Type: domain.ActionAlreadyExists, Path: "present.bin"})

	if result.Outcome != domain.OutcomeAlreadyPresent {
		t.Fatalf("expected already present after 304, got %s (err: %v)", result.Outcome, result.Err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "old" {
		t.Errorf("304 must leave the local file untouched: %q, %v", data, err)
	}
}

func TestRefreshRedownloadsChunkedBody(t *testing.T) {
	content := "fresh contents"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Modified-Since") == "" {
			t.Error("expected a conditional request")
		}
		// Flush before writing so the response has no Content-Length
		w.(http.Flusher).Flush()
		io.WriteString(w, content)
	}))
	defer server.Close()

	dest := t.TempDir()
	path := filepath.Join(dest, "present.bin")
	if err := os.WriteFile(path, []byte("stale contents"), 0644); err != nil {
		t.Fatalf("failed to seed local file: %v", err)
	}

	p := testPipeline(t, server.URL, dest, Options{Refresh: true, Retries: 0})
	result := runOne(t, p, domain.SyncAction{
		Type:         domain.ActionAlreadyExists,
		Path:         "present.bin",
		ExpectedSize: domain.SizeUnknown,
	})

	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s (err: %v)", result.Outcome, result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("expected a single attempt, got %d", result.Attempts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("destination file missing: %v", err)
	}
	if string(data) != content {
		t.Errorf("expected refreshed content, got %q", data)
	}
}

func TestRunProcessesActionsConcurrently(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "x")
	}))
	defer server.Close()

	const n = 20
	actions := make(chan domain.SyncAction, n)
	for i := 0; i < n; i++ {
		actions <- domain.SyncAction{Type: domain.ActionDownload, Path: "f" + strconv.Itoa(i) + ".bin"}
	}
	close(actions)

	dest := t.TempDir()
	p := testPipeline(t, server.URL, dest, Options{Workers: 4})

	count := 0
	for result := range p.Run(context.Background(), actions) {
		if result.Outcome != domain.OutcomeSuccess {
			t.Errorf("%s: expected success, got %s (err: %v)", result.Path, result.Outcome, result.Err)
		}
		count++
	}
	if count != n {
		t.Fatalf("expected %d results, got %d", n, count)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	files := 0
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), tmpSuffix) {
			t.Errorf("temporary file left behind: %s", entry.Name())
		}
		files++
	}
	if files != n {
		t.Errorf("expected %d files, got %d", n, files)
	}
}

func TestFailedFileDoesNotStopOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	actions := make(chan domain.SyncAction, 3)
	actions <- domain.SyncAction{Type: domain.ActionDownload, Path: "good1.bin"}
	actions <- domain.SyncAction{Type: domain.ActionDownload, Path: "bad.bin"}
	actions <- domain.SyncAction{Type: domain.ActionDownload, Path: "good2.bin"}
	close(actions)

	p := testPipeline(t, server.URL, t.TempDir(), Options{Workers: 1, Retries: 0})

	succeeded, failed := 0, 0
	for result := range p.Run(context.Background(), actions) {
		switch result.Outcome {
		case domain.OutcomeSuccess:
			succeeded++
		case domain.OutcomeFailed:
			failed++
		default:
			t.Errorf("unexpected outcome %s for %s", result.Outcome, result.Path)
		}
	}
	if succeeded != 2 || failed != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %d and %d", succeeded, failed)
	}
}
