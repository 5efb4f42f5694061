package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"librarium/internal/authz"
	"librarium/internal/util"
	"librarium/pkg/domain"
	"librarium/pkg/store"
)

// Borrow lends one copy to the caller. The ledger insert and the
// inventory decrement commit as one atomic unit inside the store;
// notifications go out to the borrower and to library staff.
func (a *App) Borrow(ctx context.Context, caller domain.User, bookID string) (domain.BorrowRecord, error) {
	if !authz.Can(caller.UserType, authz.BorrowBooks) {
		return domain.BorrowRecord{}, ErrCannotBorrowBooks
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.BorrowRecord{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.BorrowRecord{}, ErrBookNotFound
	}
	now := time.Now().UTC()
	rec, err := a.store.BorrowBook(domain.BorrowRecord{
		ID:         util.NewID(),
		BookID:     book.ID,
		UserID:     caller.ID,
		BorrowedAt: now,
		DueDate:    now.Add(a.loanPeriod),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBookNotFound):
			return domain.BorrowRecord{}, ErrBookNotFound
		case errors.Is(err, store.ErrNoCopiesAvailable):
			return domain.BorrowRecord{}, ErrNoCopiesAvailable
		case errors.Is(err, store.ErrAlreadyBorrowed):
			return domain.BorrowRecord{}, ErrAlreadyBorrowed
		default:
			return domain.BorrowRecord{}, fmt.Errorf("borrow book: %w", err)
		}
	}
	a.notify(ctx, "Book Borrowed",
		fmt.Sprintf("You have successfully borrowed the book: %s.", book.Title),
		[]string{caller.Email})
	a.notify(ctx, "Book Borrowed Notification",
		fmt.Sprintf("The book '%s' was borrowed by %s (Email: %s).", book.Title, caller.Name, caller.Email),
		a.libraryStaffEmails())
	return rec, nil
}

// Return closes the caller's open record for the book and puts the
// copy back on the shelf.
func (a *App) Return(ctx context.Context, caller domain.User, bookID string) (domain.BorrowRecord, error) {
	if !authz.Can(caller.UserType, authz.BorrowBooks) {
		return domain.BorrowRecord{}, ErrCannotReturnBooks
	}
	rec, err := a.store.ReturnBook(bookID, caller.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrOpenRecordNotFound) {
			return domain.BorrowRecord{}, ErrOpenRecordNotFound
		}
		return domain.BorrowRecord{}, fmt.Errorf("return book: %w", err)
	}
	title := bookID
	if book, ok, err := a.store.GetBook(bookID); err == nil && ok {
		title = book.Title
	}
	a.notify(ctx, "Book Returned",
		fmt.Sprintf("You have successfully returned the book: %s.", title),
		[]string{caller.Email})
	a.notify(ctx, "Book Returned Notification",
		fmt.Sprintf("The book '%s' was returned by %s (Email: %s).", title, caller.Name, caller.Email),
		a.libraryStaffEmails())
	return rec, nil
}

// BorrowedByUser lists a visitor's open records for library staff.
func (a *App) BorrowedByUser(caller domain.User, userID string) ([]domain.BorrowRecord, error) {
	if !authz.Can(caller.UserType, authz.ViewMemberLoans) {
		return nil, ErrCannotViewLoans
	}
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	if target.UserType == domain.LibraryUser {
		return nil, ErrTargetIsStaff
	}
	records, err := a.store.ListOpenRecords(target.ID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoUserLoans
	}
	return records, nil
}

// MyBorrowed lists the caller's own open records.
func (a *App) MyBorrowed(caller domain.User) ([]domain.BorrowRecord, error) {
	if !authz.Can(caller.UserType, authz.ViewOwnLoans) {
		return nil, ErrCannotViewLoans
	}
	records, err := a.store.ListOpenRecords(caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoOwnLoans
	}
	return records, nil
}
