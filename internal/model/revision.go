package model

import (
	"time"

	"gorm.io/gorm"
)

// Revision is a versioned snapshot of a part. At most one revision per part is
// unreleased at any time; the partial unique index idx_revisions_open enforces it.
type Revision struct {
	gorm.Model
	PartID     uint       `gorm:"not null;uniqueIndex:idx_revisions_part_index;index:idx_revisions_open,unique,where:is_released = false"`
	Index      int        `gorm:"column:rev_index;not null;uniqueIndex:idx_revisions_part_index"`
	State      string     `gorm:"not null"`
	CadFile    *string    `gorm:"column:cad_file"`
	IsReleased bool       `gorm:"not null;default:false"`
	ReleasedAt *time.Time `gorm:"column:released_at"`

	Part          *Part                 `gorm:"foreignKey:PartID"`
	Certification []*CertificationField `gorm:"foreignKey:RevisionID;constraint:OnDelete:CASCADE"`
	Files         []*RevisionFile       `gorm:"foreignKey:RevisionID;constraint:OnDelete:CASCADE"`
}

func (Revision) TableName() string {
	return "revisions"
}

// CertificationField is a named value captured on a revision. The set is
// replaced wholesale on save.
type CertificationField struct {
	ID         uint   `gorm:"primaryKey"`
	RevisionID uint   `gorm:"not null;index:idx_certification_revision"`
	Name       string `gorm:"not null"`
	Value      string `gorm:"not null;default:''"`
	Order      int    `gorm:"column:sort_order;not null;default:0"`
	CreatedAt  time.Time
}

func (CertificationField) TableName() string {
	return "certification_fields"
}
