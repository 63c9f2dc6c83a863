// Package validate parses raw backend text into a QuestionPaper, enforcing
// the question_paper contract.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"paperai/api/internal/paper"
	"paperai/api/internal/schema"
	"paperai/api/internal/util"
)

type Validator struct {
	schema   *jsonschema.Schema
	semantic bool
}

type Option func(*Validator)

// WithSemanticChecks enables the marks-sum and per-type count checks.
func WithSemanticChecks(on bool) Option {
	return func(v *Validator) { v.semantic = on }
}

func New(opts ...Option) (*Validator, error) {
	sch, err := schema.Compile()
	if err != nil {
		return nil, err
	}
	v := &Validator{schema: sch}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Parse returns the paper or a *paper.Failure of kind MalformedResponse or
// SchemaViolation.
func (v *Validator) Parse(raw string, cfg paper.PaperConfig) (paper.QuestionPaper, error) {
	p, _, err := v.ParseRaw(raw, cfg)
	return p, err
}

// ParseRaw is Parse that also returns the validated document: compacted, but
// otherwise exactly what the backend sent. Callers that re-emit the paper
// write these bytes so that empty options or explanations survive.
func (v *Validator) ParseRaw(raw string, cfg paper.PaperConfig) (paper.QuestionPaper, json.RawMessage, error) {
	text := util.StripCodeFences(raw)
	if text == "" {
		return paper.QuestionPaper{}, nil, paper.Fail(paper.MalformedResponse, "backend returned an empty response")
	}

	if !json.Valid([]byte(text)) {
		return paper.QuestionPaper{}, nil, paper.Fail(paper.MalformedResponse, "response is not valid JSON: %s", util.Truncate(text, 120))
	}
	var doc any
	d := json.NewDecoder(strings.NewReader(text))
	d.UseNumber()
	if err := d.Decode(&doc); err != nil {
		return paper.QuestionPaper{}, nil, paper.Fail(paper.MalformedResponse, "response is not valid JSON: %v", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return paper.QuestionPaper{}, nil, paper.Fail(paper.SchemaViolation, "%s", firstViolation(err))
	}

	// схема принимает 20.0 как integer, структура с int такое не декодирует
	normalized, err := json.Marshal(integralNumbers(doc))
	if err != nil {
		return paper.QuestionPaper{}, nil, paper.Fail(paper.MalformedResponse, "re-encode response: %v", err)
	}
	var out paper.QuestionPaper
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return paper.QuestionPaper{}, nil, paper.Fail(paper.SchemaViolation, "response does not match question paper: %v", err)
	}

	if v.semantic {
		if err := checkSemantics(out, cfg); err != nil {
			return paper.QuestionPaper{}, nil, paper.Fail(paper.SchemaViolation, "semantic: %v", err)
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return paper.QuestionPaper{}, nil, paper.Fail(paper.MalformedResponse, "response is not valid JSON: %v", err)
	}
	return out, json.RawMessage(compact.Bytes()), nil
}

// integralNumbers rewrites json.Number values such as 20.0 or 2e1 to their
// integer form; other values are returned unchanged.
func integralNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = integralNumbers(vv)
		}
	case []any:
		for i, vv := range t {
			t[i] = integralNumbers(vv)
		}
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t
		}
		f, err := t.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
	}
	return v
}

// firstViolation walks to the deepest first cause so the message names the
// offending field instead of the root object.
func firstViolation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}

func checkSemantics(p paper.QuestionPaper, cfg paper.PaperConfig) error {
	if sum := p.MarksSum(); sum != p.TotalMarks {
		return fmt.Errorf("totalMarks is %d but question marks sum to %d", p.TotalMarks, sum)
	}
	got := p.CountByType()
	for _, t := range paper.QuestionTypes() {
		if want := cfg.Counts.Of(t); got[t] != want {
			return fmt.Errorf("expected %d %s question(s), got %d", want, t, got[t])
		}
	}
	return nil
}
