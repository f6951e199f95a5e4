package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xpanvictor/aura/internal/domains/user"
)

// UserEntity represents the database entity for User with GORM tags
type UserEntity struct {
	ID          string    `gorm:"primaryKey;type:char(36);not null"`
	Email       string    `gorm:"uniqueIndex;type:varchar(191);not null"`
	DisplayName string    `gorm:"column:display_name;type:varchar(255)"`
	Password    string    `gorm:"column:password_hash;type:char(60);not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (UserEntity) TableName() string {
	return "users"
}

// BeforeCreate is a GORM hook to ensure UUID is set
func (u *UserEntity) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (u *UserEntity) ToDomain() *user.User {
	return &user.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Password:    u.Password,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (u *UserEntity) FromDomain(domainUser *user.User) {
	u.ID = domainUser.ID
	u.Email = domainUser.Email
	u.DisplayName = domainUser.DisplayName
	u.Password = domainUser.Password
	u.CreatedAt = domainUser.CreatedAt
	u.UpdatedAt = domainUser.UpdatedAt
}
