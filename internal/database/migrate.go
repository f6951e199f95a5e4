package database

import (
	"gorm.io/gorm"

	userRepo "github.com/xpanvictor/aura/internal/repository/user"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRepo.UserEntity{},
	)
}
