package models

import "time"

// Page is the content unit role assignments attach to. Only its identity is
// interpreted here; content lives with the host platform.
type Page struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Namespace int       `json:"namespace" gorm:"index:idx_page_ns_title,unique;not null"`
	Title     string    `json:"title" gorm:"index:idx_page_ns_title,unique;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
