package model

import (
	"encoding/json"
	"time"
)

// ActivityLog is an append-only audit record of a mutating action.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Facility  string    `gorm:"not null" json:"stabilimento"`
	Group     string    `gorm:"column:group_name;not null" json:"gruppo"`
	Account   string    `gorm:"not null;index:idx_activity_account" json:"account"`
	Action    string    `gorm:"not null" json:"azione"`
	Reference string    `gorm:"not null;default:''" json:"riferimento"`
	Details   string    `gorm:"not null;default:''" json:"dettagli"`
	CreatedAt time.Time `gorm:"index:idx_activity_created_at" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

func (a *ActivityLog) MarshalBinary() ([]byte, error) {
	return json.Marshal(a)
}
