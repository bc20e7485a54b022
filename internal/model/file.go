package model

import "time"

// RevisionFile is a file attached to a revision. The blob lives in the storage
// backend under StorageKey; StoredName is unique across all revisions.
type RevisionFile struct {
	ID          uint   `gorm:"primaryKey"`
	RevisionID  uint   `gorm:"not null;index:idx_revision_files_revision"`
	StoredName  string `gorm:"not null;uniqueIndex:idx_revision_files_stored_name"`
	Filename    string `gorm:"not null"`
	StorageKey  string `gorm:"not null"`
	Mimetype    string `gorm:"not null;default:''"`
	Size        int64  `gorm:"not null;default:0"`
	Compression string `gorm:"not null;default:none"`
	UploadedAt  time.Time
}

func (RevisionFile) TableName() string {
	return "revision_files"
}

// PartFile is the legacy flat attachment list of a part.
type PartFile struct {
	ID          uint   `gorm:"primaryKey"`
	PartID      uint   `gorm:"not null;index:idx_part_files_part"`
	StoredName  string `gorm:"not null;uniqueIndex:idx_part_files_stored_name"`
	Filename    string `gorm:"not null"`
	Description string `gorm:"not null;default:''"`
	StorageKey  string `gorm:"not null"`
	Filetype    string `gorm:"not null;default:''"`
	Size        int64  `gorm:"not null;default:0"`
	Compression string `gorm:"not null;default:none"`
	UploadedAt  time.Time
}

func (PartFile) TableName() string {
	return "part_files"
}
