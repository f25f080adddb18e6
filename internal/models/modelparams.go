package models

import "time"

// ModelParameters is a per-account, per-model row of generation settings.
type ModelParameters struct {
	UserID           string    `json:"-" db:"user_id"`
	ModelID          string    `json:"model_id" db:"model_id"`
	Temperature      float64   `json:"temperature" db:"temperature"`
	MaxTokens        int       `json:"max_tokens" db:"max_tokens"`
	TopP             float64   `json:"top_p" db:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty" db:"frequency_penalty"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// UpdateModelParametersRequest carries a partial update. Nil fields are left
// untouched.
type UpdateModelParametersRequest struct {
	Temperature      *float64 `json:"temperature"`
	MaxTokens        *int     `json:"max_tokens"`
	TopP             *float64 `json:"top_p"`
	FrequencyPenalty *float64 `json:"frequency_penalty"`
}
