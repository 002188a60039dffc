package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestChatCompletePayload(t *testing.T) {
	var captured chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %s", got)
		}
		if got := r.Header.Get("OpenAI-Organization"); got != "org-1" {
			t.Errorf("unexpected organization header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hello!  "}}]}`))
	}))
	defer ts.Close()

	client := NewChatClient(Options{APIKey: "sk-test", BaseURL: ts.URL, Organization: "org-1"})
	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if reply != "Hello!" {
		t.Fatalf("reply = %q", reply)
	}
	if captured.Model != "gpt-4" || captured.MaxTokens != 500 || captured.Temperature != 0.7 {
		t.Fatalf("unexpected request parameters: %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[1].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
}

func TestChatCompleteErrors(t *testing.T) {
	if _, err := NewChatClient(Options{}).Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}

	client := NewChatClient(Options{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"rate limited","type":"requests"}}`)),
			}, nil
		})},
	})
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	empty := NewChatClient(Options{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"choices":[]}`))}, nil
		})},
	})
	if _, err := empty.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestTranscribeMultipart(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "RIFFdata" {
				t.Errorf("file data = %q", data)
			}
			if header.Filename != "audio.webm" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		_, _ = w.Write([]byte(`{"text":" what time is it "}`))
	}))
	defer ts.Close()

	client := NewTranscribeClient(Options{APIKey: "sk-test", BaseURL: ts.URL + "/"})
	text, err := client.Transcribe(context.Background(), []byte("RIFFdata"), "")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "what time is it" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeRequiresAudio(t *testing.T) {
	client := NewTranscribeClient(Options{APIKey: "sk-test"})
	if _, err := client.Transcribe(context.Background(), nil, "a.webm"); err == nil {
		t.Fatalf("expected error for empty audio")
	}
	if _, err := NewTranscribeClient(Options{}).Transcribe(context.Background(), []byte{1}, "a.webm"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
