package request_models

// QuizQuestionRecord accepts both stored question shapes: free-form
// (question + optional answer) and multiple-choice (question + four
// options + correct_index). Older rows used "prompt" for the question text.
type QuizQuestionRecord struct {
	Question     string   `json:"question"`
	Prompt       string   `json:"prompt,omitempty"`
	Answer       *string  `json:"answer,omitempty"`
	Options      []string `json:"options,omitempty"`
	CorrectIndex *int     `json:"correct_index,omitempty"`
}

type GradeQuizRequest struct {
	Questions []QuizQuestionRecord `json:"questions"`
	Answers   []string             `json:"answers"`
}
