package model

import "time"

// BomEdge links a parent part to a child part with a consumption quantity.
// An edge exists only while Quantity > 0; it is hard deleted otherwise.
type BomEdge struct {
	ID        uint    `gorm:"primaryKey"`
	ParentID  uint    `gorm:"not null;uniqueIndex:idx_bom_edges_parent_child"`
	ChildID   uint    `gorm:"not null;uniqueIndex:idx_bom_edges_parent_child;index:idx_bom_edges_child"`
	Quantity  float64 `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Parent *Part `gorm:"foreignKey:ParentID"`
	Child  *Part `gorm:"foreignKey:ChildID"`
}

func (BomEdge) TableName() string {
	return "bom_edges"
}

// Component is one row of a single-level BOM listing.
type Component struct {
	Code        string  `json:"figlio"`
	Description string  `json:"descrizione"`
	Quantity    float64 `json:"quantita"`
}
