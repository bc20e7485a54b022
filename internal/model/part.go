package model

import (
	"gorm.io/gorm"
)

// Part is a manufacturable item identified by a generated code
// (<2-digit type><6-digit sequence><checksum letter>).
// Parts are soft deleted so their codes keep taking part in sequence generation.
type Part struct {
	gorm.Model
	Code        string  `gorm:"size:16;not null;uniqueIndex:idx_parts_code"`
	Description string  `gorm:"not null;default:''"`
	Quantity    float64 `gorm:"not null;default:0"` // quantity on hand, unrelated to BOM quantities
	Location    string  `gorm:"not null;default:''"`

	Revisions []*Revision `gorm:"foreignKey:PartID;constraint:OnDelete:CASCADE"`
	Files     []*PartFile `gorm:"foreignKey:PartID;constraint:OnDelete:CASCADE"`
}

func (Part) TableName() string {
	return "parts"
}

// LatestRevision returns the revision with the highest index, or nil.
func (p *Part) LatestRevision() *Revision {
	var latest *Revision
	for _, rev := range p.Revisions {
		if latest == nil || rev.Index > latest.Index {
			latest = rev
		}
	}

	return latest
}

// HasReleasedRevision reports whether any revision of the part was released.
func (p *Part) HasReleasedRevision() bool {
	for _, rev := range p.Revisions {
		if rev.IsReleased {
			return true
		}
	}

	return false
}
