package gemini

import (
	"context"
	"encoding/base64"
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

func newTestClient(baseURL string) *Client {
	c := NewClient("test-key",
		WithBaseURL(baseURL),
		WithLogger(testLogger()),
		WithMaxRetries(1),
	)
	c.baseBackoff = time.Millisecond
	return c
}

func TestGenerateText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("expected API key header, got %q", got)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 3 {
			t.Errorf("expected 1 content with 3 parts (text + 2 images), got %+v", req.Contents)
		}

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  an enhanced prompt  "}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	text, err := client.GenerateText(context.Background(), TextRequest{
		Instruction: "describe the composite",
		Images: []InlineImage{
			{MIMEType: "image/jpeg", Data: []byte("product")},
			{MIMEType: "image/jpeg", Data: []byte("scene")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "an enhanced prompt" {
		t.Errorf("expected trimmed text, got %q", text)
	}
}

func TestGenerateText_NoAPIKey(t *testing.T) {
	client := NewClient("", WithLogger(testLogger()))

	_, err := client.GenerateText(context.Background(), TextRequest{Instruction: "x"})
	if !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet, got %v", err)
	}
}

func TestGenerateText_NoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GenerateText(context.Background(), TextRequest{Instruction: "x"})
	if !errors.Is(err, ErrNoTextProduced) {
		t.Errorf("expected ErrNoTextProduced, got %v", err)
	}
}

func TestGenerateText_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GenerateText(context.Background(), TextRequest{Instruction: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerateImage_InlineData(t *testing.T) {
	imgBytes := []byte("fake-png-bytes")
	encoded := base64.StdEncoding.EncodeToString(imgBytes)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.GenerationConfig == nil || len(req.GenerationConfig.ResponseModalities) != 2 {
			t.Error("expected TEXT and IMAGE response modalities")
		}

		resp := `{"candidates":[{"content":{"parts":[` +
			`{"text":"here is your image"},` +
			`{"inlineData":{"mimeType":"image/png","data":"` + encoded + `"}}` +
			`]}}]}`
		_, _ = w.Write([]byte(resp))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.GenerateImage(context.Background(), ImageRequest{Instruction: "compose"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Data) != string(imgBytes) {
		t.Error("decoded image bytes do not match")
	}
	if result.MIMEType != "image/png" {
		t.Errorf("expected image/png, got %q", result.MIMEType)
	}
}

func TestGenerateImage_FileData(t *testing.T) {
	imgBytes := []byte("remote-image-bytes")

	var fileSrv *httptest.Server
	fileSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("expected API key on file fetch, got %q", got)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(imgBytes)
	}))
	defer fileSrv.Close()

	genSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := `{"candidates":[{"content":{"parts":[` +
			`{"fileData":{"fileUri":"` + fileSrv.URL + `/files/abc"}}` +
			`]}}]}`
		_, _ = w.Write([]byte(resp))
	}))
	defer genSrv.Close()

	client := newTestClient(genSrv.URL)
	result, err := client.GenerateImage(context.Background(), ImageRequest{Instruction: "compose"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Data) != string(imgBytes) {
		t.Error("fetched image bytes do not match")
	}
	if result.MIMEType != "image/jpeg" {
		t.Errorf("expected image/jpeg from Content-Type, got %q", result.MIMEType)
	}
}

func TestGenerateImage_NoImageData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A 200 with only text parts is still a failure for an image call.
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I cannot generate that image"}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GenerateImage(context.Background(), ImageRequest{Instruction: "compose"})
	if !errors.Is(err, ErrNoImageProduced) {
		t.Errorf("expected ErrNoImageProduced, got %v", err)
	}
}

func TestGenerateImage_InvalidBase64FallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"!!not-base64!!"}}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GenerateImage(context.Background(), ImageRequest{Instruction: "compose"})
	if !errors.Is(err, ErrNoImageProduced) {
		t.Errorf("expected ErrNoImageProduced, got %v", err)
	}
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"recovered"}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	text, err := client.GenerateText(context.Background(), TextRequest{Instruction: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "recovered" {
		t.Errorf("expected 'recovered', got %q", text)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestGenerate_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"invalid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GenerateText(context.Background(), TextRequest{Instruction: "x"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call (no retry on 400), got %d", calls.Load())
	}
}

func TestGenerate_APIErrorInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"permission denied","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GenerateText(context.Background(), TextRequest{Instruction: "x"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
}
