package models

import "time"

// UserSettings holds per-user defaults. A missing row means defaults.
type UserSettings struct {
	UserID             string    `json:"user_id" db:"user_id"`
	PreferredAIModelID *int64    `json:"preferred_ai_model_id" db:"preferred_ai_model_id"`
	Language           string    `json:"language" db:"language"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultUserSettings returns the settings a user has before saving any.
func DefaultUserSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:   userID,
		Language: "en",
	}
}
