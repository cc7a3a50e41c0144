package request_models

type RequestPasswordReset struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

type ConfirmPasswordReset struct {
	Token       string `json:"token" binding:"required,len=64,hexadecimal"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}
