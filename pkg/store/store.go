package store

import (
	"time"

	"librarium/pkg/domain"
)

// Store defines persistence operations for users, books, and borrow
// records. Inventory-mutating operations (BorrowBook, ReturnBook,
// AdjustBookCopies, DeleteBook) are atomic against the book row:
// implementations must not let two concurrent borrows both consume the
// last available copy.
type Store interface {
	// users
	CreateUser(domain.User) error
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsersByType(t domain.UserType) ([]domain.User, error)
	DeleteUser(id string) error

	// books
	CreateBook(domain.Book) error
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	AdjustBookCopies(id string, newTotal int) (domain.Book, error)
	DeleteBook(id string) error

	// borrow records
	BorrowBook(rec domain.BorrowRecord) (domain.BorrowRecord, error)
	ReturnBook(bookID, userID string, returnedAt time.Time) (domain.BorrowRecord, error)
	ListOpenRecords(userID string) ([]domain.BorrowRecord, error)
	HasOpenRecords(userID string) (bool, error)
	ListOverdueRecords(now time.Time) ([]domain.BorrowRecord, error)
}
