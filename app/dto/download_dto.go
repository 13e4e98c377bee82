package dto

// SendEbookRequest asks for a download link by email
type SendEbookRequest struct {
	Email string  `json:"email" validate:"required,email,max=255"`
	Name  *string `json:"name,omitempty" validate:"omitempty,max=255"`
}

// SendEbookResponse carries the issued download link
type SendEbookResponse struct {
	DownloadURL string `json:"downloadUrl" example:"https://example.com/api/download/4f1c..."`
	ExpiresAt   string `json:"expiresAt" example:"2024-01-16T10:30:00Z"`
}

// ValidateTokenRequest checks a download token
type ValidateTokenRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

// ValidateTokenResponse is returned for a usable token
type ValidateTokenResponse struct {
	Valid bool   `json:"valid" example:"true"`
	Email string `json:"email" example:"reader@example.com"`
}

// ResolveDownloadResponse is the redirect target of a valid token
type ResolveDownloadResponse struct {
	Email       string `json:"email"`
	DownloadURL string `json:"download_url"`
}
