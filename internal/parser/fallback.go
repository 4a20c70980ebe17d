package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

// The deterministic fallback relies on numbering and score patterns only.
// It always succeeds on non-empty input, at reduced confidence.
var (
	reQuestionHead = regexp.MustCompile(`(?i)\b(?:q|question)\s*\.?\s*(\d+[a-z]?)\b[.):]?`)
	reMarks        = regexp.MustCompile(`(?i)[(\[]\s*(\d+(?:\.\d+)?)\s*(?:marks?|points?|pts?)\s*[)\]]`)
	reAnswerHead   = regexp.MustCompile(`(?im)\b(?:answer|ans|q)\s*\.?\s*(\d+[a-z]?)\b[.):]?|^\s*(\d+[a-z]?)[.)]\s+`)
)

const (
	fallbackConfidence      = 0.50
	fallbackDefaultMaxScore = 1.0
)

type span struct {
	number string
	start  int // index of the heading match
	body   int // index right after the heading
	end    int
}

func headingSpans(re *regexp.Regexp, text string) []span {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	spans := make([]span, 0, len(matches))
	for _, m := range matches {
		s := span{start: m[0], body: m[1]}
		for g := 1; g < len(m)/2; g++ {
			if m[2*g] >= 0 {
				s.number = text[m[2*g]:m[2*g+1]]
				break
			}
		}
		if s.number == "" {
			continue
		}
		spans = append(spans, s)
	}
	for i := range spans {
		if i+1 < len(spans) {
			spans[i].end = spans[i+1].start
		} else {
			spans[i].end = len(text)
		}
	}
	return spans
}

// FallbackParseGuide builds a guide from numbering and "(n marks)" patterns.
// This is a recovered outcome, not a failure: extraction_method is "fallback"
// and confidence is reduced.
func FallbackParseGuide(text string) *entity.GuideSchema {
	spans := headingSpans(reQuestionHead, text)

	var questions []entity.Question
	var notes []string
	var total float64
	for _, s := range spans {
		body := strings.TrimSpace(text[s.body:s.end])
		max := fallbackDefaultMaxScore
		if m := reMarks.FindStringSubmatch(body); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				max = v
			}
			// strip the marks annotation from the question text
			body = strings.TrimSpace(reMarks.ReplaceAllString(body, ""))
		} else {
			notes = append(notes, fmt.Sprintf("question %s: no marks pattern found, default max score applied", s.number))
		}
		if body == "" {
			body = "(question text not recovered)"
		}
		questions = append(questions, entity.Question{
			ID:       "q" + strings.ToLower(s.number),
			Number:   s.number,
			Text:     body,
			MaxScore: max,
		})
		total += max
	}

	if len(questions) == 0 {
		// No numbering at all: treat the whole document as one question.
		notes = append(notes, "no question numbering found, whole text treated as a single question")
		questions = []entity.Question{{
			ID:       "q1",
			Number:   "1",
			Text:     strings.TrimSpace(text),
			MaxScore: fallbackDefaultMaxScore,
		}}
		total = fallbackDefaultMaxScore
	}

	return &entity.GuideSchema{
		ID:         uuid.New(),
		Questions:  questions,
		TotalMarks: total,
		Metadata: entity.GuideMetadata{
			NumQuestions:         len(questions),
			ExtractionConfidence: fallbackConfidence,
			ExtractionMethod:     constants.MethodFallback,
			ProcessingNotes:      notes,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// FallbackParseAnswers splits submission text by answer/question numbering.
func FallbackParseAnswers(text string, submissionID uuid.UUID) *entity.SubmissionAnswerSet {
	spans := headingSpans(reAnswerHead, text)

	var answers []entity.Answer
	for _, s := range spans {
		body := strings.TrimSpace(text[s.body:s.end])
		if body == "" {
			continue
		}
		answers = append(answers, entity.Answer{
			QuestionRef: strings.ToLower(s.number),
			Text:        body,
		})
	}
	if len(answers) == 0 {
		// No structure: the whole submission is one unreferenced answer.
		answers = []entity.Answer{{QuestionRef: "", Text: strings.TrimSpace(text)}}
	}

	return &entity.SubmissionAnswerSet{
		SubmissionID: submissionID,
		Answers:      answers,
		Method:       constants.MethodFallback,
		Confidence:   fallbackConfidence,
		CreatedAt:    time.Now().UTC(),
	}
}
