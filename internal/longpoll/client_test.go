package longpoll

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPollOptions() PollOptions {
	return PollOptions{
		Interval:         time.Millisecond,
		MaxAttempts:      5,
		TransientBackoff: time.Millisecond,
		MaxTransient:     3,
	}
}

func TestSubmit_TaskIDShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested data.task_id", `{"code":200,"data":{"task_id":"task-nested"}}`, "task-nested"},
		{"flat task_id", `{"task_id":"task-flat"}`, "task-flat"},
		{"bare id", `{"id":"task-id"}`, "task-id"},
		{"job_id", `{"job_id":"task-job"}`, "task-job"},
		{"nested wins over flat", `{"task_id":"flat","data":{"task_id":"nested"}}`, "nested"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(WithLogger(testLogger()))
			id, err := client.Submit(context.Background(), srv.URL, nil, map[string]string{"prompt": "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.want {
				t.Errorf("expected task ID %q, got %q", tt.want, id)
			}
		})
	}
}

func TestSubmit_NoTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"message":"ok"}`))
	}))
	defer srv.Close()

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Submit(context.Background(), srv.URL, nil, map[string]string{})
	if !errors.Is(err, ErrNoTaskID) {
		t.Errorf("expected ErrNoTaskID, got %v", err)
	}
}

func TestSubmit_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid payload"}`))
	}))
	defer srv.Close()

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Submit(context.Background(), srv.URL, nil, map[string]string{})
	if !errors.Is(err, ErrSubmitFailed) {
		t.Errorf("expected ErrSubmitFailed, got %v", err)
	}
}

func TestSubmit_SendsHeaders(t *testing.T) {
	var gotKey, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotCT = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"task_id":"t1"}`))
	}))
	defer srv.Close()

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Submit(context.Background(), srv.URL, map[string]string{"x-api-key": "secret"}, map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("expected x-api-key header 'secret', got %q", gotKey)
	}
	if gotCT != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", gotCT)
	}
}

func TestPoll_Done(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"completed","url":"https://example.com/out.mp4"}`))
	}))
	defer srv.Close()

	classify := func(statusCode int, body []byte) Outcome {
		var r struct {
			Status string `json:"status"`
		}
		_ = json.Unmarshal(body, &r)
		if r.Status == "completed" {
			return Outcome{State: StateDone, Payload: body}
		}
		return Outcome{State: StateRunning}
	}

	client := NewClient(WithLogger(testLogger()))
	payload, err := client.Poll(context.Background(), srv.URL, nil, classify, fastPollOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !json.Valid(payload) {
		t.Error("expected valid JSON payload")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 poll attempts, got %d", calls.Load())
	}
}

func TestPoll_Failed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed","error":"content policy violation"}`))
	}))
	defer srv.Close()

	classify := func(statusCode int, body []byte) Outcome {
		return Outcome{State: StateFailed, Reason: "content policy violation"}
	}

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Poll(context.Background(), srv.URL, nil, classify, fastPollOptions())
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
	if err.Error() == ErrTaskFailed.Error() {
		t.Error("expected failure reason to be included in error message")
	}
}

func TestPoll_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	}))
	defer srv.Close()

	classify := func(statusCode int, body []byte) Outcome {
		return Outcome{State: StateRunning}
	}

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Poll(context.Background(), srv.URL, nil, classify, fastPollOptions())
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
}

func TestPoll_TransientExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	classify := func(statusCode int, body []byte) Outcome {
		t.Error("classifier should not see 5xx responses")
		return Outcome{}
	}

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Poll(context.Background(), srv.URL, nil, classify, fastPollOptions())
	if !errors.Is(err, ErrTransientExhausted) {
		t.Fatalf("expected ErrTransientExhausted, got %v", err)
	}
}

func TestPoll_TransientResetOnRunning(t *testing.T) {
	// Alternate 404 / running; the consecutive-transient counter resets
	// each time a running response comes through, so polling continues
	// until the attempt budget runs out.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	}))
	defer srv.Close()

	classify := func(statusCode int, body []byte) Outcome {
		return Outcome{State: StateRunning}
	}

	opts := fastPollOptions()
	opts.MaxAttempts = 6
	opts.MaxTransient = 2

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Poll(context.Background(), srv.URL, nil, classify, opts)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout (not transient exhaustion), got %v", err)
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	}))
	defer srv.Close()

	classify := func(statusCode int, body []byte) Outcome {
		return Outcome{State: StateRunning}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithLogger(testLogger()))
	_, err := client.Poll(ctx, srv.URL, nil, classify, fastPollOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
