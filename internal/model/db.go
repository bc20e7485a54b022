package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Part{},
		&Revision{},
		&CertificationField{},
		&RevisionFile{},
		&PartFile{},
		&BomEdge{},
		&ActivityLog{},
		&AccountCredential{},
	)
}
