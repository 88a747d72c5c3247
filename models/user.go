package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupHandler is the group whose members may be assigned cases
const GroupHandler = "handler"

type User struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"index" json:"email"`
	Password     string     `gorm:"not null" json:"-"`
	PhoneNumber  *string    `gorm:"size:15" json:"phone_number,omitempty"`
	ProfileImage *string    `json:"profile_image,omitempty"` // storage key
	IsSuperuser  bool       `gorm:"not null;default:false" json:"is_superuser"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	Groups []Group `gorm:"many2many:user_groups;" json:"groups,omitempty"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// InGroup reports membership by group name. Groups must be preloaded.
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// Group is a named capability grant
type Group struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

func (Group) TableName() string {
	return "groups"
}
