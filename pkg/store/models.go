package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	UserType     int       `gorm:"not null"`
	IsActive     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID              string    `gorm:"primaryKey"`
	Title           string    `gorm:"not null;uniqueIndex:idx_books_title_author"`
	Author          string    `gorm:"not null;uniqueIndex:idx_books_title_author"`
	TotalCopies     int       `gorm:"not null"`
	AvailableCopies int       `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

type BorrowRecordModel struct {
	ID         string    `gorm:"primaryKey"`
	BookID     string    `gorm:"not null;index"`
	UserID     string    `gorm:"not null;index"`
	BorrowedAt time.Time `gorm:"not null"`
	DueDate    time.Time `gorm:"not null;index"`
	ReturnedAt *time.Time
}
