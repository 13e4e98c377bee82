// Package dto
package dto

// AdminLoginRequest authenticates the single admin. Captcha fields are required only when captcha is enabled.
type AdminLoginRequest struct {
	Password    string   `json:"password" validate:"required,max=256"`
	ChallengeID *string  `json:"challenge_id,omitempty"`
	UserAngle   *float64 `json:"user_angle,omitempty"`
}

// AdminSessionDTO describes an admin session
type AdminSessionDTO struct {
	Authenticated bool   `json:"authenticated" example:"true"`
	AccessToken   string `json:"access_token,omitempty" example:"jwt"`
	TokenType     string `json:"token_type,omitempty" example:"Bearer"`
	ExpiresIn     int    `json:"expires_in,omitempty" example:"86400"`
	ExpiresAt     string `json:"expires_at,omitempty" example:"2024-01-16T10:30:00Z"`
}

type AdminCaptchaInitResponse struct {
	ChallengeID       string `json:"challenge_id"`
	MasterImageBase64 string `json:"master_image_base64"`
	ThumbImageBase64  string `json:"thumb_image_base64"`
}
