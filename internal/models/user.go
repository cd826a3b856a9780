package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// Valid проверяет, что роль входит в допустимый набор
func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

const DefaultUserRating = 5.0

type User struct {
	ID               uint      `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	Username         string    `json:"username" gorm:"column:username;uniqueIndex;not null;type:varchar(100)"`
	PasswordHash     string    `json:"-" gorm:"column:password_hash;not null;type:varchar(255)"`
	Role             Role      `json:"role" gorm:"column:role;not null;default:'passenger';type:varchar(20)"`
	FullName         string    `json:"full_name" gorm:"column:full_name;type:varchar(255)"`
	Email            string    `json:"email" gorm:"column:email;type:varchar(255)"`
	Phone            string    `json:"phone" gorm:"column:phone;type:varchar(20)"`
	ProfilePicture   string    `json:"profile_picture" gorm:"column:profile_picture;type:text"`
	Rating           float64   `json:"rating" gorm:"column:rating;not null;default:5"`
	TripCount        int       `json:"trip_count" gorm:"column:trip_count;not null;default:0"`
	CurrentLatitude  *float64  `json:"current_latitude" gorm:"column:current_latitude"`
	CurrentLongitude *float64  `json:"current_longitude" gorm:"column:current_longitude"`
	IsOnline         bool      `json:"is_online" gorm:"column:is_online;not null;default:false"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// HasLocation сообщает, известны ли текущие координаты пользователя
func (u *User) HasLocation() bool {
	return u.CurrentLatitude != nil && u.CurrentLongitude != nil
}

// AfterFind вызывается после загрузки модели из базы данных
func (u *User) AfterFind(_ *gorm.DB) error {
	if u.ProfilePicture != "" && u.ProfilePicture[0] != '/' && !isAbsoluteURL(u.ProfilePicture) {
		u.ProfilePicture = "/" + u.ProfilePicture
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Principal - аутентифицированный участник запроса. Передаётся в сервисы явно.
type Principal struct {
	UserID uint
	Role   Role
}

func (p Principal) Is(role Role) bool {
	return p.Role == role
}
