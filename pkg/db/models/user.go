package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Nickname    string           `gorm:"column:nickname;not null"`
	Role        enums.UserRole   `gorm:"column:role;type:user_role;not null;default:'buyer'"`
	Status      enums.UserStatus `gorm:"column:status;type:user_status;not null;default:'active'"`
	LastLoginAt *time.Time       `gorm:"column:last_login_at"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
