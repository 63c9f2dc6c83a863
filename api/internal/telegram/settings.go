package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"paperai/api/internal/paper"
)

// Settings are the per-chat generation parameters.
type Settings struct {
	Engine string
	Config paper.PaperConfig
}

func (s Settings) String() string {
	c := s.Config
	engine := s.Engine
	if engine == "" {
		engine = "default"
	}
	return fmt.Sprintf("grade=%s\nsubject=%s\ndifficulty=%s\nlang=%s\nmcq=%d tf=%d short=%d long=%d\nengine=%s",
		c.GradeLevel, c.Subject, c.Difficulty, c.TargetLanguage,
		c.Counts.MCQ, c.Counts.TrueFalse, c.Counts.Short, c.Counts.Long, engine)
}

// ParseSettings applies "key=value" overrides to base. A value runs until the
// next key, so "subject=Natural Sciences lang=French" works without quotes.
func ParseSettings(text string, base Settings) (Settings, error) {
	pairs, err := splitPairs(text)
	if err != nil {
		return base, err
	}
	out := base
	for _, kv := range pairs {
		key, val := kv[0], kv[1]
		if val == "" {
			return base, fmt.Errorf("%s: empty value", key)
		}
		switch key {
		case "grade", "gradelevel":
			out.Config.GradeLevel = val
		case "subject":
			out.Config.Subject = val
		case "lang", "language":
			out.Config.TargetLanguage = val
		case "difficulty":
			d := paper.Difficulty(strings.ToUpper(val))
			switch d {
			case paper.Easy, paper.Medium, paper.Hard:
				out.Config.Difficulty = d
			default:
				return base, fmt.Errorf("difficulty must be EASY, MEDIUM or HARD, got %q", val)
			}
		case "engine", "llm":
			switch e := strings.ToLower(val); e {
			case "gemini", "gpt", "openai", "default":
				if e == "default" {
					e = ""
				}
				out.Engine = e
			default:
				return base, fmt.Errorf("unknown engine %q", val)
			}
		case "mcq", "tf", "short", "long":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return base, fmt.Errorf("%s must be a non-negative number, got %q", key, val)
			}
			switch key {
			case "mcq":
				out.Config.Counts.MCQ = n
			case "tf":
				out.Config.Counts.TrueFalse = n
			case "short":
				out.Config.Counts.Short = n
			case "long":
				out.Config.Counts.Long = n
			}
		default:
			return base, fmt.Errorf("unknown setting %q", key)
		}
	}
	return out, nil
}

func splitPairs(text string) ([][2]string, error) {
	var pairs [][2]string
	for _, tok := range strings.Fields(text) {
		k, v, ok := strings.Cut(tok, "=")
		if ok {
			pairs = append(pairs, [2]string{strings.ToLower(strings.TrimSpace(k)), v})
			continue
		}
		if len(pairs) == 0 {
			return nil, fmt.Errorf("expected key=value, got %q", tok)
		}
		last := &pairs[len(pairs)-1]
		if last[1] == "" {
			last[1] = tok
		} else {
			last[1] += " " + tok
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no settings given")
	}
	return pairs, nil
}
