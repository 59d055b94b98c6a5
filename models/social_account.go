package models

import "time"

/************************************************
/**** MARK: SOCIAL PROVIDERS ****/
/************************************************/
const SOCIAL_PROVIDER_GOOGLE = "google"
const SOCIAL_PROVIDER_FACEBOOK = "facebook"
const SOCIAL_PROVIDER_INSTAGRAM = "instagram"
const SOCIAL_PROVIDER_LINKEDIN = "linkedin"

// SocialAccount é o vínculo social de um Person (uma linha por provedor).
// O token do provedor é guardado criptografado; o vínculo é trocado
// transacionalmente num novo callback e removido no disconnect.
type SocialAccount struct {
	ID       int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	PersonID int64 `gorm:"not null;index" json:"person_id"`

	Provider       string `gorm:"not null;index" json:"provider"`
	ProviderUserID string `gorm:"default:''" json:"provider_user_id"`
	DisplayName    string `gorm:"default:''" json:"display_name"`
	ProfileURL     string `gorm:"default:''" json:"profile_url"`

	AccessTokenCipher string     `gorm:"not null" json:"-"`
	TokenExpiresAt    *time.Time `json:"token_expires_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
