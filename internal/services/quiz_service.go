package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Pabby01/studIQ-sub001/internal/models/request_models"
	"github.com/Pabby01/studIQ-sub001/internal/models/response_models"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

const choicesPerQuestion = 4

// QuestionVariant is either MultipleChoice or FreeForm.
type QuestionVariant interface {
	isQuestionVariant()
}

type MultipleChoice struct {
	Options      [choicesPerQuestion]string
	CorrectIndex int
}

// FreeForm accepts any non-empty answer unless HasExpected is set, in which
// case the answer must contain ExpectedAnswer (case-insensitive).
type FreeForm struct {
	ExpectedAnswer string
	HasExpected    bool
}

func (MultipleChoice) isQuestionVariant() {}
func (FreeForm) isQuestionVariant()       {}

type Question struct {
	Prompt  string
	Variant QuestionVariant
}

type QuizServiceInterface interface {
	Grade(records []request_models.QuizQuestionRecord, answers []string) (*response_models.QuizResultResponse, error)
}

type QuizService struct{}

func NewQuizService() QuizServiceInterface {
	return &QuizService{}
}

func (q *QuizService) Grade(records []request_models.QuizQuestionRecord, answers []string) (*response_models.QuizResultResponse, error) {
	questions, err := NormalizeQuestions(records)
	if err != nil {
		return nil, err
	}
	result := GradeQuestions(questions, answers)
	return &result, nil
}

// NormalizeQuestions converts stored records into questions. A record with
// options is multiple choice and must carry exactly four options and a
// correct_index in range; anything else is free-form.
func NormalizeQuestions(records []request_models.QuizQuestionRecord) ([]Question, error) {
	questions := make([]Question, 0, len(records))

	for i, r := range records {
		prompt := strings.TrimSpace(r.Question)
		if prompt == "" {
			prompt = strings.TrimSpace(r.Prompt)
		}
		if prompt == "" {
			return nil, fmt.Errorf("%w: question %d has no prompt", utils.ErrInvalidQuestion, i)
		}

		if len(r.Options) > 0 {
			if len(r.Options) != choicesPerQuestion {
				return nil, fmt.Errorf("%w: question %d has %d options, want %d",
					utils.ErrInvalidQuestion, i, len(r.Options), choicesPerQuestion)
			}
			if r.CorrectIndex == nil || *r.CorrectIndex < 0 || *r.CorrectIndex >= choicesPerQuestion {
				return nil, fmt.Errorf("%w: question %d has no valid correct_index", utils.ErrInvalidQuestion, i)
			}

			var mc MultipleChoice
			copy(mc.Options[:], r.Options)
			mc.CorrectIndex = *r.CorrectIndex
			questions = append(questions, Question{Prompt: prompt, Variant: mc})
			continue
		}

		ff := FreeForm{}
		if r.Answer != nil && strings.TrimSpace(*r.Answer) != "" {
			ff.ExpectedAnswer = strings.TrimSpace(*r.Answer)
			ff.HasExpected = true
		}
		questions = append(questions, Question{Prompt: prompt, Variant: ff})
	}

	return questions, nil
}

// GradeQuestions scores answers against questions by position. Missing
// answers count as empty. An empty quiz scores 0.
func GradeQuestions(questions []Question, answers []string) response_models.QuizResultResponse {
	result := response_models.QuizResultResponse{
		Correct: make([]bool, len(questions)),
		Total:   len(questions),
	}

	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		if isCorrect(q.Variant, answer) {
			result.Correct[i] = true
			result.CorrectCount++
		}
	}

	if result.Total > 0 {
		result.Score = int(math.Round(100 * float64(result.CorrectCount) / float64(result.Total)))
	}
	return result
}

func isCorrect(variant QuestionVariant, answer string) bool {
	answer = strings.TrimSpace(answer)

	switch v := variant.(type) {
	case MultipleChoice:
		idx, err := strconv.Atoi(answer)
		return err == nil && idx == v.CorrectIndex
	case FreeForm:
		if !v.HasExpected {
			return answer != ""
		}
		return strings.Contains(strings.ToLower(answer), strings.ToLower(v.ExpectedAnswer))
	default:
		return false
	}
}
