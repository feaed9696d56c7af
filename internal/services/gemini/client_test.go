package gemini_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lettercast/internal/config"
	"lettercast/internal/services"
	"lettercast/internal/services/gemini"
)

func newClient(t *testing.T, server *httptest.Server, opts ...gemini.Option) *gemini.Client {
	t.Helper()
	base := append([]gemini.Option{
		gemini.WithSleeper(func(time.Duration) {}),
	}, opts...)
	return gemini.NewClient(gemini.Config{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		UploadBaseURL: server.URL,
		Model:         "gemini-2.5-flash",
	}, base...)
}

func candidateJSON(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]},"finishReason":"STOP"}]}`, text)
}

func TestGenerateContentSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query: %s", r.URL.String())
		}
		fmt.Fprint(w, candidateJSON("hello from the model"))
	}))
	defer server.Close()

	client := newClient(t, server)
	text, err := client.GenerateContent(context.Background(), "prompting", "say hello", nil)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "hello from the model" {
		t.Fatalf("text = %q", text)
	}
}

func TestGenerateContentRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, candidateJSON("recovered"))
	}))
	defer server.Close()

	client := newClient(t, server, gemini.WithRetryMaxAttempts(4))
	text, err := client.GenerateContent(context.Background(), "prompting", "prompt", nil)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("text = %q", text)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestGenerateContentHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, candidateJSON("after backoff"))
	}))
	defer server.Close()

	var slept []time.Duration
	client := gemini.NewClient(gemini.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-2.5-flash",
	}, gemini.WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	if _, err := client.GenerateContent(context.Background(), "prompting", "prompt", nil); err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Fatalf("slept = %v, want one 3s wait", slept)
	}
}

func TestGenerateContentAuthFailureDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newClient(t, server)
	_, err := client.GenerateContent(context.Background(), "prompting", "prompt", nil)
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestGenerateContentQuotaExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newClient(t, server)
	_, err := client.GenerateContent(context.Background(), "prompting", "prompt", nil)
	if !errors.Is(err, services.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded for 429 without Retry-After, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestGenerateContentExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "flaky", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newClient(t, server, gemini.WithRetryMaxAttempts(3))
	_, err := client.GenerateContent(context.Background(), "prompting", "prompt", nil)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork after exhaustion, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestGenerateContentBadRequestIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed content", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newClient(t, server)
	_, err := client.GenerateContent(context.Background(), "prompting", "prompt", nil)
	if !errors.Is(err, services.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

// The configuration defaults carry bare API roots; the client appends the
// version prefix itself. Redirecting the default URLs at a stub server checks
// the two halves compose into the documented endpoint paths.
func TestDefaultEndpointsHitVersionedPaths(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"files":[]}`)
		case strings.Contains(r.URL.Path, ":generateContent"):
			fmt.Fprint(w, candidateJSON("ok"))
		default:
			fmt.Fprint(w, `{"file":{"name":"files/abc","uri":"https://example.test/files/abc","mimeType":"audio/mpeg","state":"ACTIVE"}}`)
		}
	}))
	defer server.Close()

	defaults := config.Default()
	const prodHost = "https://generativelanguage.googleapis.com"
	client := gemini.NewClient(gemini.Config{
		APIKey:        "test-key",
		BaseURL:       strings.Replace(defaults.Gemini.BaseURL, prodHost, server.URL, 1),
		UploadBaseURL: strings.Replace(defaults.Gemini.UploadBaseURL, prodHost, server.URL, 1),
		Model:         defaults.Gemini.Model,
	}, gemini.WithSleeper(func(time.Duration) {}))

	if _, err := client.GenerateContent(context.Background(), "prompting", "prompt", nil); err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	path, _ := uploadFixture(t)
	if _, err := client.UploadFile(context.Background(), "submitting", path, "audio/mpeg"); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	want := []string{
		"POST /v1beta/models/" + defaults.Gemini.Model + ":generateContent",
		"GET /v1beta/files",
		"POST /upload/v1beta/files",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(requests) != len(want) {
		t.Fatalf("requests = %v, want %v", requests, want)
	}
	for i := range want {
		if requests[i] != want[i] {
			t.Fatalf("request %d = %q, want %q", i, requests[i], want[i])
		}
	}
}

func uploadFixture(t *testing.T) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment-000.mp3")
	content := []byte("fake audio segment bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)
	return path, base64.StdEncoding.EncodeToString(sum[:])
}

func TestUploadFileSuccess(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"files":[]}`)
		case http.MethodPost:
			uploads.Add(1)
			if got := r.Header.Get("X-Goog-Upload-Protocol"); got != "raw" {
				t.Errorf("upload protocol header = %q", got)
			}
			fmt.Fprint(w, `{"file":{"name":"files/abc","uri":"https://example.test/files/abc","mimeType":"audio/mpeg","state":"ACTIVE"}}`)
		}
	}))
	defer server.Close()

	path, _ := uploadFixture(t)
	client := newClient(t, server)

	ref, err := client.UploadFile(context.Background(), "submitting", path, "audio/mpeg")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if ref.URI != "https://example.test/files/abc" {
		t.Fatalf("uri = %q", ref.URI)
	}

	// Second upload of the same bytes reuses the cached reference.
	if _, err := client.UploadFile(context.Background(), "submitting", path, "audio/mpeg"); err != nil {
		t.Fatalf("second UploadFile: %v", err)
	}
	if uploads.Load() != 1 {
		t.Fatalf("expected 1 upload, got %d", uploads.Load())
	}
}

func TestUploadFileReusesServiceHeldFile(t *testing.T) {
	path, digest := uploadFixture(t)

	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprintf(w, `{"files":[{"name":"files/held","uri":"https://example.test/files/held","mimeType":"audio/mpeg","sha256Hash":%q,"state":"ACTIVE"}]}`, digest)
		case http.MethodPost:
			uploads.Add(1)
			fmt.Fprint(w, `{"file":{"name":"files/new","uri":"https://example.test/files/new"}}`)
		}
	}))
	defer server.Close()

	client := newClient(t, server)
	ref, err := client.UploadFile(context.Background(), "submitting", path, "audio/mpeg")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if ref.Name != "files/held" {
		t.Fatalf("expected service-held file reused, got %q", ref.Name)
	}
	if uploads.Load() != 0 {
		t.Fatalf("expected no uploads, got %d", uploads.Load())
	}
}

func TestUploadFileSingleAttempt(t *testing.T) {
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"files":[]}`)
			return
		}
		posts.Add(1)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	path, _ := uploadFixture(t)
	client := newClient(t, server)

	_, err := client.UploadFile(context.Background(), "submitting", path, "audio/mpeg")
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if posts.Load() != 1 {
		t.Fatalf("upload must not retry internally, got %d posts", posts.Load())
	}
}

func TestDecodeModelJSONStripsFences(t *testing.T) {
	payload := "```json\n{\"subject\":\"S\",\"teaser\":\"T\"}\n```"
	var parsed struct {
		Subject string `json:"subject"`
		Teaser  string `json:"teaser"`
	}
	if err := gemini.DecodeModelJSON(payload, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if parsed.Subject != "S" || parsed.Teaser != "T" {
		t.Fatalf("parsed = %+v", parsed)
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	payload := "Sure! Here is the JSON you asked for: {\"subject\":\"S\",\"teaser\":\"T\"} Hope that helps."
	var parsed struct {
		Subject string `json:"subject"`
	}
	if err := gemini.DecodeModelJSON(payload, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if parsed.Subject != "S" {
		t.Fatalf("parsed = %+v", parsed)
	}
}
