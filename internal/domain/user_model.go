package domain

import "time"

// Roles. Admins may block; only superadmins may unblock.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Email    string `gorm:"uniqueIndex;not null;size:255"`
	Password string `gorm:"not null;size:100;check:length(password) >= 8" json:"-"`
	Role     string `gorm:"not null;default:'user';check:role IN ('user', 'admin', 'superadmin')"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// CanBlock reports whether the role may issue manual blocks.
func CanBlock(role string) bool {
	return role == RoleAdmin || role == RoleSuperadmin
}

// CanUnblock reports whether the role may reverse a block. Restricted to the
// top tier.
func CanUnblock(role string) bool {
	return role == RoleSuperadmin
}
