// Package paper holds the question-paper data model shared by every layer of
// the gateway.
package paper

type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
)

type QuestionType string

const (
	MCQ         QuestionType = "MCQ"
	TrueFalse   QuestionType = "TRUE_FALSE"
	ShortAnswer QuestionType = "SHORT_ANSWER"
	LongAnswer  QuestionType = "LONG_ANSWER"
)

// QuestionTypes returns the four question types in paper section order.
func QuestionTypes() []QuestionType {
	return []QuestionType{MCQ, TrueFalse, ShortAnswer, LongAnswer}
}

func (t QuestionType) Valid() bool {
	switch t {
	case MCQ, TrueFalse, ShortAnswer, LongAnswer:
		return true
	}
	return false
}

// SourceFile is one decoded attachment of a generation request.
type SourceFile struct {
	ID       string
	Name     string
	MimeType string
	Payload  []byte
}

type Counts struct {
	MCQ       int `json:"mcq" validate:"gte=0"`
	TrueFalse int `json:"trueFalse" validate:"gte=0"`
	Short     int `json:"short" validate:"gte=0"`
	Long      int `json:"long" validate:"gte=0"`
}

func (c Counts) Total() int { return c.MCQ + c.TrueFalse + c.Short + c.Long }

// Of returns the requested count for a question type.
func (c Counts) Of(t QuestionType) int {
	switch t {
	case MCQ:
		return c.MCQ
	case TrueFalse:
		return c.TrueFalse
	case ShortAnswer:
		return c.Short
	case LongAnswer:
		return c.Long
	}
	return 0
}

type PaperConfig struct {
	GradeLevel     string     `json:"gradeLevel" validate:"required"`
	Subject        string     `json:"subject" validate:"required"`
	Difficulty     Difficulty `json:"difficulty" validate:"required,oneof=EASY MEDIUM HARD"`
	TargetLanguage string     `json:"targetLanguage" validate:"required"`
	Counts         Counts     `json:"counts"`
}

type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer"`
	Explanation   string       `json:"explanation,omitempty"`
	Marks         int          `json:"marks"`
}

type QuestionPaper struct {
	Title           string     `json:"title"`
	GradeLevel      string     `json:"gradeLevel"`
	Subject         string     `json:"subject"`
	TargetLanguage  string     `json:"targetLanguage"`
	DurationMinutes int        `json:"durationMinutes"`
	TotalMarks      int        `json:"totalMarks"`
	Instructions    []string   `json:"instructions"`
	Questions       []Question `json:"questions"`
}

// MarksSum adds up the marks of every question.
func (p QuestionPaper) MarksSum() int {
	sum := 0
	for _, q := range p.Questions {
		sum += q.Marks
	}
	return sum
}

// CountByType tallies questions per type.
func (p QuestionPaper) CountByType() map[QuestionType]int {
	out := make(map[QuestionType]int, 4)
	for _, q := range p.Questions {
		out[q.Type]++
	}
	return out
}

// GenerationRequest lives for exactly one gateway call.
type GenerationRequest struct {
	Files  []SourceFile
	Config PaperConfig
}
