package schema

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

const validPaper = `{
  "title": "Photosynthesis Quiz",
  "gradeLevel": "8",
  "subject": "Biology",
  "targetLanguage": "English",
  "durationMinutes": 30,
  "totalMarks": 2,
  "instructions": ["Answer all questions."],
  "questions": [
    {"id": "q1", "type": "MCQ", "prompt": "Where does photosynthesis happen?", "options": ["Chloroplast", "Nucleus"], "correctAnswer": "Chloroplast", "marks": 1},
    {"id": "q2", "type": "TRUE_FALSE", "prompt": "Plants need light.", "correctAnswer": "True", "explanation": "Light drives the reaction.", "marks": 1}
  ]
}`

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	d := json.NewDecoder(strings.NewReader(s))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestCompileAcceptsValidPaper(t *testing.T) {
	sch, err := Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := sch.Validate(decode(t, validPaper)); err != nil {
		t.Fatalf("valid paper rejected: %v", err)
	}
}

func TestCompileRejectsContractViolations(t *testing.T) {
	sch, err := Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cases := map[string]string{
		"mcq without options": `{"title":"t","gradeLevel":"1","subject":"s","targetLanguage":"en","durationMinutes":10,"totalMarks":1,"instructions":[],
			"questions":[{"id":"q1","type":"MCQ","prompt":"p","correctAnswer":"a","marks":1}]}`,
		"unknown type": `{"title":"t","gradeLevel":"1","subject":"s","targetLanguage":"en","durationMinutes":10,"totalMarks":1,"instructions":[],
			"questions":[{"id":"q1","type":"ESSAY","prompt":"p","correctAnswer":"a","marks":1}]}`,
		"options on true/false": `{"title":"t","gradeLevel":"1","subject":"s","targetLanguage":"en","durationMinutes":10,"totalMarks":1,"instructions":[],
			"questions":[{"id":"q1","type":"TRUE_FALSE","prompt":"p","options":["True","False"],"correctAnswer":"True","marks":1}]}`,
		"missing totalMarks": `{"title":"t","gradeLevel":"1","subject":"s","targetLanguage":"en","durationMinutes":10,"instructions":[],"questions":[]}`,
		"fractional marks": `{"title":"t","gradeLevel":"1","subject":"s","targetLanguage":"en","durationMinutes":10,"totalMarks":1,"instructions":[],
			"questions":[{"id":"q1","type":"SHORT_ANSWER","prompt":"p","correctAnswer":"a","marks":1.5}]}`,
		"extra field": `{"title":"t","gradeLevel":"1","subject":"s","targetLanguage":"en","durationMinutes":10,"totalMarks":1,"instructions":[],"questions":[],"grade":"1"}`,
	}
	for name, doc := range cases {
		if err := sch.Validate(decode(t, doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestGeminiSchemaMirrorsContract(t *testing.T) {
	s := Gemini()
	if s.Type != genai.TypeObject {
		t.Fatalf("expected object, got %v", s.Type)
	}
	if len(s.Required) != 8 {
		t.Fatalf("expected 8 required fields, got %v", s.Required)
	}
	q := s.Properties["questions"].Items
	if q == nil || q.Type != genai.TypeObject {
		t.Fatalf("questions items missing")
	}
	if got := q.Properties["type"].Enum; len(got) != 4 || got[0] != "MCQ" {
		t.Fatalf("unexpected type enum %v", got)
	}
	if q.Properties["marks"].Type != genai.TypeInteger {
		t.Fatalf("marks should be integer")
	}
}

func TestOpenAISchemaDropsConditionalsWithoutTouchingContract(t *testing.T) {
	s := OpenAI()
	raw, _ := json.Marshal(s)
	for _, kw := range []string{`"if"`, `"then"`, `"else"`, `"$schema"`} {
		if bytes.Contains(raw, []byte(kw)) {
			t.Fatalf("openai schema still contains %s", kw)
		}
	}
	if !bytes.Contains(JSON(), []byte(`"if"`)) {
		t.Fatalf("canonical contract lost its conditional")
	}
}
