package dto

// LoginRequest is the JSON body for POST /login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the JSON body for POST /register. The email doubles as
// the account's username.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,min=1"`
}

// LoginResponse is returned by POST /login. Bad credentials are a normal
// outcome: Success false plus a message, never a 4xx.
type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CSRFTokenResponse is returned by GET /set-csrf-token.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrftoken"`
}

// UserResponse is returned by GET /user.
type UserResponse struct {
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	SecretFact []string `json:"secret_fact"`
}
