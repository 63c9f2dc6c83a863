package telegram

import (
	"fmt"
	"strings"

	"paperai/api/internal/paper"
)

var sectionTitles = map[paper.QuestionType]string{
	paper.MCQ:         "Multiple choice",
	paper.TrueFalse:   "True / False",
	paper.ShortAnswer: "Short answer",
	paper.LongAnswer:  "Long answer",
}

// RenderPaper formats a paper as plain chat text: questions grouped by
// type in section order, then the answer key.
func RenderPaper(p paper.QuestionPaper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📄 %s\n", p.Title)
	fmt.Fprintf(&b, "%s · grade %s · %s\n", p.Subject, p.GradeLevel, p.TargetLanguage)
	fmt.Fprintf(&b, "⏱ %d min · %d marks\n", p.DurationMinutes, p.TotalMarks)

	if len(p.Instructions) > 0 {
		b.WriteString("\n")
		for _, in := range p.Instructions {
			fmt.Fprintf(&b, "• %s\n", in)
		}
	}

	n, sec := 0, 0
	var key strings.Builder
	for _, t := range paper.QuestionTypes() {
		var qs []paper.Question
		for _, q := range p.Questions {
			if q.Type == t {
				qs = append(qs, q)
			}
		}
		if len(qs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%c. %s\n", 'A'+sec, sectionTitles[t])
		sec++
		for _, q := range qs {
			n++
			fmt.Fprintf(&b, "%d. %s (%s)\n", n, q.Prompt, marks(q.Marks))
			for j, o := range q.Options {
				fmt.Fprintf(&b, "   %c) %s\n", 'a'+j, o)
			}
			fmt.Fprintf(&key, "%d. %s\n", n, q.CorrectAnswer)
		}
	}
	if key.Len() > 0 {
		b.WriteString("\nAnswer key:\n")
		b.WriteString(key.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

func marks(n int) string {
	if n == 1 {
		return "1 mark"
	}
	return fmt.Sprintf("%d marks", n)
}
