package response_models

type QuizResultResponse struct {
	Score        int    `json:"score"`
	Correct      []bool `json:"correct"`
	CorrectCount int    `json:"correct_count"`
	Total        int    `json:"total"`
}
