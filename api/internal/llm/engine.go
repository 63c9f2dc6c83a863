package llm

import (
	"context"
	"fmt"
	"strings"
)

// Attachment is one source file sent to the backend as-is.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// Request is a fully built backend invocation.
type Request struct {
	System      string
	Instruction string
	Files       []Attachment
}

// Engine performs a single generation call and returns the raw model text.
// Implementations must not retry.
type Engine interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, req Request) (string, error)
}

type Engines struct {
	Gemini Engine
	OpenAI Engine
	// Default is used when the caller does not name an engine.
	Default string
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(e.Default))
	}
	var eng Engine
	switch name {
	case "", "gemini":
		eng = e.Gemini
	case "gpt", "openai":
		eng = e.OpenAI
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use 'gemini' or 'gpt'", llmName)
	}
	if eng == nil {
		return nil, fmt.Errorf("llm %q is not configured", name)
	}
	return eng, nil
}
