package store

import "errors"

var (
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateBook is returned when a (title, author) pair already exists.
	ErrDuplicateBook = errors.New("book with this title and author already exists")

	// ErrBookNotFound is returned when a book id does not resolve.
	ErrBookNotFound = errors.New("book not found")

	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoCopiesAvailable is returned when a borrow finds no copy on the shelf.
	ErrNoCopiesAvailable = errors.New("no copies available")

	// ErrAlreadyBorrowed is returned when the caller already holds an open
	// record for the book.
	ErrAlreadyBorrowed = errors.New("already borrowed")

	// ErrOpenRecordNotFound is returned when a return finds no open record.
	ErrOpenRecordNotFound = errors.New("open borrow record not found")

	// ErrCopiesBorrowed is returned when a book cannot be deleted because
	// copies are still lent out.
	ErrCopiesBorrowed = errors.New("copies currently borrowed")
)
