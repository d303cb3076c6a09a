package models

import "time"

// AllowedDomain maps a lower-case email domain to the campus it belongs to.
type AllowedDomain struct {
	Domain     string    `gorm:"primaryKey;type:varchar(255)" json:"domain"`
	CampusID   string    `gorm:"index;not null" json:"campus_id"`
	CampusName string    `gorm:"not null" json:"campus_name"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
