package domain

import "time"

// UserType distinguishes library staff from visiting patrons.
type UserType int

const (
	LibraryUser UserType = 0
	VisitorUser UserType = 1
)

// Valid reports whether the value is one of the known user types.
func (t UserType) Valid() bool {
	return t == LibraryUser || t == VisitorUser
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	UserType     UserType  `json:"user_type"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Book is a catalog entry. AvailableCopies counts copies on the shelf
// and never exceeds TotalCopies.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BorrowRecord is one lending transaction. A nil ReturnedAt means the
// book is still out; at most one open record exists per (book, user).
type BorrowRecord struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	UserID     string     `json:"user_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// Overdue reports whether the record is past due and still open.
func (r BorrowRecord) Overdue(now time.Time) bool {
	return r.ReturnedAt == nil && r.DueDate.Before(now)
}
