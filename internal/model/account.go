package model

import "gorm.io/gorm"

// AccountCredential stores the password hash of an account. Account names are
// stored lower case so lookups are case-insensitive.
type AccountCredential struct {
	gorm.Model
	Account      string `gorm:"not null;uniqueIndex:idx_account_credentials_account"`
	PasswordHash string `gorm:"not null"`
}

func (AccountCredential) TableName() string {
	return "account_credentials"
}
