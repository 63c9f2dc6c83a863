package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"paperai/api/internal/llm"
)

func TestGenerateSendsSchemaAndFiles(t *testing.T) {
	var calls atomic.Int32
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"{\"title\":"},{"type":"output_text","text":"\"x\"}"}]}]}`))
	}))
	defer srv.Close()

	eng := New("sk-test", "gpt-4.1-mini", srv.URL)
	text, err := eng.Generate(context.Background(), llm.Request{
		System:      "sys",
		Instruction: "inst",
		Files: []llm.Attachment{
			{Name: "p.png", MimeType: "image/png", Data: []byte{1, 2}},
			{Name: "n.pdf", MimeType: "application/pdf", Data: []byte{3}},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != `{"title":"x"}` {
		t.Fatalf("unexpected text %q", text)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one call, got %d", calls.Load())
	}

	format := got["text"].(map[string]any)["format"].(map[string]any)
	if format["type"] != "json_schema" || format["name"] != "question_paper" {
		t.Fatalf("unexpected text format %v", format)
	}
	input := got["input"].([]any)
	user := input[1].(map[string]any)["content"].([]any)
	if len(user) != 3 {
		t.Fatalf("expected image, file and text parts, got %d", len(user))
	}
	if user[0].(map[string]any)["type"] != "input_image" || user[1].(map[string]any)["type"] != "input_file" {
		t.Fatalf("unexpected part types: %v", user)
	}
}

func TestGenerateReportsHTTPErrorsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New("sk-test", "gpt-4.1-mini", srv.URL).Generate(context.Background(), llm.Request{})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}

func TestExtractResponsesTextPrefersOutputText(t *testing.T) {
	raw := []byte(`{"output_text":" {\"a\":1} ","output":[{"content":[{"type":"output_text","text":"ignored"}]}]}`)
	if got := extractResponsesText(raw); got != `{"a":1}` {
		t.Fatalf("unexpected %q", got)
	}
	if got := extractResponsesText([]byte("nope")); got != "" {
		t.Fatalf("expected empty text for invalid envelope")
	}
}
