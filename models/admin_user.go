package models

import "time"

/************************************************
/**** MARK: ADMIN ROLES ****/
/************************************************/
const ADMIN_ROLE_ANALYST = "ANALYST"
const ADMIN_ROLE_MANAGER = "MANAGER"

/************************************************
/**** MARK: ADMIN STATUS ****/
/************************************************/
const ADMIN_STATUS_ACTIVE = 0
const ADMIN_STATUS_BLOCKED = 1

// AdminUser é um analista/gestor do back-office. O TokenHash autentica as
// chamadas administrativas (emissão de login/JWT fica fora deste serviço).
type AdminUser struct {
	ID        int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Email     string `gorm:"not null;unique" json:"email"`
	Role      string `gorm:"not null;default:'ANALYST'" json:"role"`
	Status    int    `gorm:"not null;default:0" json:"status"`
	TokenHash string `gorm:"not null;index" json:"-"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Active diz se o usuário pode agir e receber atribuições automáticas.
func (u AdminUser) Active() bool {
	return u.Status == ADMIN_STATUS_ACTIVE
}
