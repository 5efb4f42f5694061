package app

import "errors"

// User-facing error values. The wording is part of the API surface:
// handlers serialize these messages into the "detail" field.
var (
	// authentication
	ErrLoginFailed        = errors.New("User not found or password is incorrect")
	ErrAuthUserNotFound   = errors.New("User not found")
	ErrUserNotFound       = errors.New("User not found.")
	ErrInvalidActivation  = errors.New("Invalid or expired activation link.")
	ErrEmailAlreadyExists = errors.New("A user with this email address already exists.")
	ErrNameRequired       = errors.New("Name is required.")
	ErrEmailRequired      = errors.New("Email is required.")
	ErrInvalidEmail       = errors.New("Enter a valid email address.")
	ErrInvalidUserType    = errors.New("Invalid user type.")

	// account management
	ErrOnlySelfDelete    = errors.New("Only library users can delete themselves.")
	ErrOnlyLibraryDelete = errors.New("Only library users can delete other users.")
	ErrDeleteLibraryUser = errors.New("Cannot delete a library user.")
	ErrVisitorHasLoans   = errors.New("Cannot delete user with existing borrow records.")

	// catalog
	ErrCannotAddBooks    = errors.New("You do not have permission to add books.")
	ErrCannotUpdateBooks = errors.New("You do not have permission to update books.")
	ErrCannotDeleteBooks = errors.New("You do not have permission to delete books.")
	ErrBookNotFound      = errors.New("Book not found")
	ErrDuplicateBook     = errors.New("A book with this title and author already exists.")
	ErrTitleRequired     = errors.New("Title is required.")
	ErrAuthorRequired    = errors.New("Author is required.")
	ErrNegativeCopies    = errors.New("Total copies must not be negative.")
	ErrCopiesBorrowed    = errors.New("Cannot delete the book because some copies are currently borrowed.")

	// borrow/return
	ErrCannotBorrowBooks  = errors.New("You do not have permission to borrow books.")
	ErrCannotReturnBooks  = errors.New("You do not have permission to return books.")
	ErrCannotViewLoans    = errors.New("You do not have permission to view borrowed books.")
	ErrNoCopiesAvailable  = errors.New("No copies of this book are available.")
	ErrAlreadyBorrowed    = errors.New("You have already borrowed this book.")
	ErrOpenRecordNotFound = errors.New("No record found for this book or you have already returned it.")
	ErrTargetIsStaff      = errors.New("This user is a library staff member.")
	ErrNoUserLoans        = errors.New("No borrowed books found for this user.")
	ErrNoOwnLoans         = errors.New("No borrowed books found for you.")
)
