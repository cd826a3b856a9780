package models

import "time"

// Location - сохранённое место пользователя (дом, работа и т.п.)
type Location struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     uint      `json:"user_id" gorm:"column:user_id;not null;index"`
	Name       string    `json:"name" gorm:"column:name;not null"`
	Address    string    `json:"address" gorm:"column:address;not null"`
	Latitude   float64   `json:"latitude" gorm:"column:latitude;not null"`
	Longitude  float64   `json:"longitude" gorm:"column:longitude;not null"`
	IsFavorite bool      `json:"is_favorite" gorm:"column:is_favorite;not null;default:false"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// Place - результат поиска адреса у внешнего провайдера
type Place struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"`
}
