package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"paperai/api/internal/llm"
	"paperai/api/internal/schema"
	"paperai/api/internal/util"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model, baseURL string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// генерация по нескольким страницам может долго ждать первых заголовков
		ResponseHeaderTimeout: 150 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: strings.TrimRight(baseURL, "/"),
		// Timeout=0: the caller's context bounds the call
		httpc: &http.Client{Timeout: 0, Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for custom timeouts or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

// Generate posts one request to the Responses API with the question_paper
// json_schema text format and returns the model text.
func (e *Engine) Generate(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY is empty")
	}
	payload, err := json.Marshal(e.body(req))
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai %d: %s", resp.StatusCode, util.Truncate(strings.TrimSpace(string(raw)), 1024))
	}
	return extractResponsesText(raw), nil
}

func (e *Engine) body(req llm.Request) map[string]any {
	user := make([]any, 0, len(req.Files)+1)
	for _, f := range req.Files {
		dataURL := util.MakeDataURL(f.MimeType, f.Data)
		if util.IsImageMIME(f.MimeType) {
			user = append(user, map[string]any{"type": "input_image", "image_url": dataURL})
			continue
		}
		user = append(user, map[string]any{"type": "input_file", "filename": fileName(f), "file_data": dataURL})
	}
	user = append(user, map[string]any{"type": "input_text", "text": req.Instruction})

	body := map[string]any{
		"model": e.Model,
		"input": []any{
			map[string]any{
				"role":    "system",
				"content": []any{map[string]any{"type": "input_text", "text": req.System}},
			},
			map[string]any{
				"role":    "user",
				"content": user,
			},
		},
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   schema.Name,
				"strict": false,
				"schema": schema.OpenAI(),
			},
		},
	}
	// gpt-5 принимает только temperature=1
	if !strings.Contains(e.Model, "gpt-5") {
		body["temperature"] = 0.4
	}
	return body
}

func fileName(f llm.Attachment) string {
	if n := strings.TrimSpace(f.Name); n != "" {
		return n
	}
	return "source"
}

// extractResponsesText prefers `output_text`, otherwise concatenates the
// text segments of `output[i].content[j]`.
func extractResponsesText(raw []byte) string {
	type content struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	type output struct {
		Content []content `json:"content"`
	}
	var env struct {
		Output     []output `json:"output"`
		OutputText string   `json:"output_text"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if s := strings.TrimSpace(env.OutputText); s != "" {
		return s
	}
	var b strings.Builder
	for _, o := range env.Output {
		for _, c := range o.Content {
			if strings.TrimSpace(c.Text) == "" {
				continue
			}
			if c.Type == "output_text" || c.Type == "text" || c.Type == "" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}
