// Package schema holds the question-paper output contract. It is declared
// once here; the backend schemas and the response validator are derived
// from it.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	Name = "question_paper"
	ID   = "https://paperai.local/schema/question_paper.json"
)

var questionTypes = []any{"MCQ", "TRUE_FALSE", "SHORT_ANSWER", "LONG_ANSWER"}

var contract = map[string]any{
	"$schema":     "https://json-schema.org/draft/2020-12/schema",
	"$id":         ID,
	"description": "A professional academic question paper",
	"type":        "object",
	"properties": map[string]any{
		"title":           map[string]any{"type": "string", "minLength": 1},
		"gradeLevel":      map[string]any{"type": "string"},
		"subject":         map[string]any{"type": "string"},
		"targetLanguage":  map[string]any{"type": "string"},
		"durationMinutes": map[string]any{"type": "integer", "minimum": 1},
		"totalMarks":      map[string]any{"type": "integer", "minimum": 1},
		"instructions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"questions": map[string]any{
			"type":  "array",
			"items": question,
		},
	},
	"required": []any{
		"title", "gradeLevel", "subject", "targetLanguage",
		"durationMinutes", "totalMarks", "instructions", "questions",
	},
	"additionalProperties": false,
}

var question = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":     map[string]any{"type": "string", "minLength": 1},
		"type":   map[string]any{"type": "string", "enum": questionTypes},
		"prompt": map[string]any{"type": "string", "minLength": 1},
		"options": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Required only if type is MCQ (at least 2 options); omit for other types",
		},
		"correctAnswer": map[string]any{"type": "string"},
		"explanation":   map[string]any{"type": "string"},
		"marks":         map[string]any{"type": "integer", "minimum": 1},
	},
	"required":             []any{"id", "type", "prompt", "correctAnswer", "marks"},
	"additionalProperties": false,
	// options present iff type = MCQ
	"if": map[string]any{
		"properties": map[string]any{"type": map[string]any{"const": "MCQ"}},
		"required":   []any{"type"},
	},
	"then": map[string]any{
		"required":   []any{"options"},
		"properties": map[string]any{"options": map[string]any{"minItems": 2}},
	},
	"else": map[string]any{
		"properties": map[string]any{"options": map[string]any{"maxItems": 0}},
	},
}

// Contract returns a deep copy of the canonical contract.
func Contract() map[string]any {
	return deepCopy(contract).(map[string]any)
}

// JSON returns the canonical contract encoded as JSON.
func JSON() []byte {
	b, err := json.Marshal(contract)
	if err != nil {
		// static literal; only reachable through a programming error
		panic(fmt.Sprintf("schema: marshal contract: %v", err))
	}
	return b
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Compile returns the contract compiled for validation. The result is cached.
func Compile() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(ID, bytes.NewReader(JSON())); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(ID)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}
