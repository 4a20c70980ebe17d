package parser

import (
	"encoding/json"
	"strings"
)

const maxPromptChars = 12000

// BuildGuideSystemPrompt composes the strict system message for parsing a
// marking guide into the fixed JSON shape.
func BuildGuideSystemPrompt() string {
	parts := []string{
		"You are an exam marking guide parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Preserve the original question order and numbering exactly as written.",
		"Nest sub-questions (e.g., 1a, 1b) under their parent question in 'sub_questions'.",
		"Every question needs 'id' (stable slug like 'q1' or 'q1a'), 'number' (as printed), 'text', and 'max_score'.",
		"'total_marks' must be the sum of all leaf question max scores.",
		"Set metadata.extraction_confidence to your confidence in [0,1] and metadata.extraction_method to 'llm_powered'.",
		"Never output null. If a field is unknown, omit it.",
		"JSON Schema:\n" + mustJSON(BuildGuideJSONSchema()),
	}
	return strings.Join(parts, " ")
}

// BuildAnswerSystemPrompt composes the system message for extracting a
// submission's answers.
func BuildAnswerSystemPrompt() string {
	parts := []string{
		"You are an exam answer extractor. Return ONLY JSON that matches the provided JSON Schema.",
		"Split the submission text into one answer per question attempt.",
		"Set 'question_ref' to the question number the student wrote (e.g., '1', '2a'); use '' when no number is visible.",
		"Keep answer text verbatim; do not summarize or correct it.",
		"Set 'confidence' to your confidence in [0,1].",
		"Never output null. If a field is unknown, omit it.",
		"JSON Schema:\n" + mustJSON(BuildAnswerJSONSchema()),
	}
	return strings.Join(parts, " ")
}

// clarification is appended to the user prompt after a malformed response.
const clarification = "\n\nYour previous response was not valid JSON matching the schema. " +
	"Respond again with ONLY the JSON object, no prose, no markdown fences."

// BuildUserPrompt truncates the document text to a safe prompt size.
func BuildUserPrompt(label, text string) string {
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(" text")
	if len(text) > maxPromptChars {
		b.WriteString(" (first ~12k chars)")
		text = text[:maxPromptChars]
	}
	b.WriteString(":\n")
	b.WriteString(text)
	return b.String()
}

// StripJSONFences removes markdown code fences some models wrap around JSON.
func StripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
