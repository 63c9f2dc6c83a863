// Package prompt turns a generation request into a backend invocation.
package prompt

import (
	"fmt"
	"strings"

	"paperai/api/internal/llm"
	"paperai/api/internal/paper"
)

const System = `You are an expert academic examiner. You write professional, well-structured
question papers strictly from the source material you are given. Never use outside knowledge
that the sources do not support. Reply with a single JSON object that follows the provided
response schema; no prose, no markdown.`

var sections = []struct {
	typ   paper.QuestionType
	label string
	marks string
}{
	{paper.MCQ, "Multiple Choice Questions", "1 mark each"},
	{paper.TrueFalse, "True/False Questions", "1 mark each"},
	{paper.ShortAnswer, "Short Answer Questions", "3-5 marks each"},
	{paper.LongAnswer, "Long Answer Questions", "8-10 marks each"},
}

var difficultyGuide = map[paper.Difficulty]string{
	paper.Easy:   "mostly factual recall and direct comprehension",
	paper.Medium: "a balance of recall, application and explanation",
	paper.Hard:   "mostly analysis, application to new situations and critical thinking",
}

// Build composes the instruction and attachments for one generation call.
// Files are attached in request order with their declared MIME types.
func Build(req paper.GenerationRequest) llm.Request {
	files := make([]llm.Attachment, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, llm.Attachment{Name: f.Name, MimeType: f.MimeType, Data: f.Payload})
	}
	return llm.Request{
		System:      System,
		Instruction: Instruction(req.Config),
		Files:       files,
	}
}

// Instruction renders the natural-language part of the request.
func Instruction(cfg paper.PaperConfig) string {
	lang := strings.TrimSpace(cfg.TargetLanguage)
	var b strings.Builder

	b.WriteString("Create a professional question paper based ONLY on the attached source materials.\n\n")
	fmt.Fprintf(&b, "Target Grade: %s\n", cfg.GradeLevel)
	fmt.Fprintf(&b, "Subject: %s\n", cfg.Subject)
	fmt.Fprintf(&b, "Difficulty: %s\n", cfg.Difficulty)
	fmt.Fprintf(&b, "Target Language: %s\n\n", lang)

	fmt.Fprintf(&b, "CRITICAL REQUIREMENT: The entire output (title, instructions, question text, options, answers and explanations) MUST be written in %s.\n", lang)
	fmt.Fprintf(&b, "Set \"targetLanguage\" to %q, \"gradeLevel\" to %q and \"subject\" to %q.\n\n", lang, cfg.GradeLevel, cfg.Subject)

	b.WriteString("Structure the paper into sections, in this order:\n")
	n := 0
	for _, s := range sections {
		count := cfg.Counts.Of(s.typ)
		if count == 0 {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. Section %c: %s - exactly %d question(s) of type %s, %s.\n",
			n, rune('A'+n-1), s.label, count, s.typ, s.marks)
	}
	fmt.Fprintf(&b, "The paper must contain exactly %d questions in total. Do not add question types that are not listed.\n\n", cfg.Counts.Total())

	b.WriteString("Guidelines:\n")
	b.WriteString("- Distribute marks logically: MCQ (1 mark), True/False (1 mark), Short (3-5 marks), Long (8-10 marks).\n")
	if g, ok := difficultyGuide[cfg.Difficulty]; ok {
		fmt.Fprintf(&b, "- Difficulty %s: %s.\n", cfg.Difficulty, g)
	}
	b.WriteString("- MCQ questions must have at least 2 options and the correct answer must be one of them; other question types must not have options.\n")
	b.WriteString("- totalMarks must equal the sum of all question marks; choose a realistic durationMinutes.\n")
	b.WriteString("- Give every question a unique id and include clear instructions and a professional academic title.\n")
	b.WriteString("- Ensure the output is strictly based on the provided source material.\n")
	return b.String()
}
