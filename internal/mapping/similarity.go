package mapping

import (
	"strings"

	"github.com/agext/levenshtein"
)

// headingSimilarity compares the opening of an answer against a question's
// text. Students often restate the question or its heading before answering,
// so the first line is the strongest signal.
func headingSimilarity(questionText, answerText string) float64 {
	q := normalizeForMatch(questionText)
	a := normalizeForMatch(firstLine(answerText))
	if q == "" || a == "" {
		return 0
	}
	// compare against a question-sized prefix of the answer
	if len(a) > len(q) {
		a = a[:len(q)]
	}
	return levenshtein.Match(q, a, nil)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return s[:i]
	}
	return s
}

func normalizeForMatch(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
