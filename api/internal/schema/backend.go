package schema

import "github.com/google/generative-ai-go/genai"

// Gemini translates the contract into the ResponseSchema subset Gemini
// accepts. Conditional and bound keywords have no equivalent there and are
// dropped; the validator still enforces them.
func Gemini() *genai.Schema {
	return toGenai(contract)
}

func toGenai(node map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if t, ok := node["type"].(string); ok {
		s.Type = genaiType(t)
	}
	if d, ok := node["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := node["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		s.Items = toGenai(items)
	}
	if props, ok := node["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toGenai(pm)
			}
		}
	}
	if req, ok := node["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	return s
}

func genaiType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	}
	return genai.TypeUnspecified
}

// openAIDropped are keywords the Responses API json_schema format rejects.
var openAIDropped = []string{"$schema", "$id", "if", "then", "else"}

// OpenAI returns the contract prepared for the Responses API json_schema
// text format. It is used with strict=false: strict mode would force every
// property into "required", which contradicts the conditional options field.
func OpenAI() map[string]any {
	m := Contract()
	stripKeywords(m, openAIDropped)
	return m
}

func stripKeywords(node any, keys []string) {
	switch n := node.(type) {
	case map[string]any:
		for _, k := range keys {
			delete(n, k)
		}
		for _, v := range n {
			stripKeywords(v, keys)
		}
	case []any:
		for _, v := range n {
			stripKeywords(v, keys)
		}
	}
}
