package models

import "time"

// PageRoleAssignment records that a user holds a named role on a specific
// page. The (page_id, role, user_id) triple is the logical key; the stricter
// (page_id, user_id) index enforces at most one role per user per page, so
// resolution never has to pick between conflicting roles.
type PageRoleAssignment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PageID     uint      `json:"page_id" gorm:"index:idx_page_role_user,unique;index:idx_page_user,unique;not null"`
	Role       string    `json:"role" gorm:"index:idx_page_role_user,unique;not null"`
	UserID     uint      `json:"user_id" gorm:"index:idx_page_role_user,unique;index:idx_page_user,unique;not null"`
	AssignedAt time.Time `json:"assigned_at"`
}

// TableName overrides the table name to `page_role_assignments`
func (PageRoleAssignment) TableName() string {
	return "page_role_assignments"
}
