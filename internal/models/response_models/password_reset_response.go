package response_models

type SweepResponse struct {
	Deleted int64 `json:"deleted"`
}
