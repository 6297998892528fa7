package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account in the platform's user directory. Page-level role
// assignments reference users by id; the editor form addresses them by
// username.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Groups       []*Group  `json:"groups,omitempty" gorm:"many2many:user_groups;"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Group is a platform-wide permission group. Group membership drives the
// baseline permission engine; it plays no part in page-level role overrides.
type Group struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null"`
	Permissions []string  `json:"permissions" gorm:"serializer:json"`
	Users       []*User   `json:"-" gorm:"many2many:user_groups;"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserGroup is the join table for the many-to-many relationship between users
// and groups.
type UserGroup struct {
	UserID    uint      `json:"user_id" gorm:"primaryKey"`
	GroupID   uint      `json:"group_id" gorm:"primaryKey"`
	User      User      `json:"-" gorm:"foreignKey:UserID"`
	Group     Group     `json:"-" gorm:"foreignKey:GroupID"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name for UserGroup to be `user_groups`
func (UserGroup) TableName() string {
	return "user_groups"
}

// SetPassword hashes the given password and sets it on the user model.
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the given password matches the user's hashed password.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// HasGroupPermission checks whether any of the user's groups carries the
// given permission. Assumes u.Groups is preloaded.
func (u *User) HasGroupPermission(permission string) bool {
	for _, group := range u.Groups {
		if group == nil {
			continue
		}
		for _, p := range group.Permissions {
			if p == permission {
				return true
			}
		}
	}
	return false
}
