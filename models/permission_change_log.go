package models

import "time"

// PermissionChangeLog journals every successful replacement of a page's role
// assignments. Informational only; the resolver never reads it.
type PermissionChangeLog struct {
	ID          string            `json:"id" gorm:"primaryKey"`
	PageID      uint              `json:"page_id" gorm:"index;not null"`
	ActorID     uint              `json:"actor_id" gorm:"not null"`
	Assignments map[string][]uint `json:"assignments" gorm:"serializer:json"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TableName overrides the table name to `permission_change_logs`
func (PermissionChangeLog) TableName() string {
	return "permission_change_logs"
}
