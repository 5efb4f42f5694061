package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"librarium/internal/authz"
	"librarium/internal/util"
	"librarium/pkg/domain"
	"librarium/pkg/store"
)

// BookUpdate carries a partial catalog update. Nil fields are left
// untouched.
type BookUpdate struct {
	Title       *string
	Author      *string
	TotalCopies *int
}

// CreateBook adds a catalog entry with every copy on the shelf.
func (a *App) CreateBook(caller domain.User, title, author string, totalCopies int) (domain.Book, error) {
	if !authz.Can(caller.UserType, authz.ManageCatalog) {
		return domain.Book{}, ErrCannotAddBooks
	}
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" {
		return domain.Book{}, validation(ErrTitleRequired)
	}
	if author == "" {
		return domain.Book{}, validation(ErrAuthorRequired)
	}
	if totalCopies < 0 {
		return domain.Book{}, validation(ErrNegativeCopies)
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:              util.NewID(),
		Title:           title,
		Author:          author,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.store.CreateBook(book); err != nil {
		if errors.Is(err, store.ErrDuplicateBook) {
			return domain.Book{}, validation(ErrDuplicateBook)
		}
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// ListBooks returns the catalog ordered by title.
func (a *App) ListBooks() ([]domain.Book, error) {
	books, err := a.store.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// GetBook returns one catalog entry.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// UpdateBook applies a partial update. A total_copies change follows
// the inventory rules: lowering below available clamps to available,
// raising makes the new copies immediately available. When
// total_copies is present the other fields are ignored, mirroring the
// catalog's PATCH contract.
func (a *App) UpdateBook(caller domain.User, id string, upd BookUpdate) (domain.Book, error) {
	if !authz.Can(caller.UserType, authz.ManageCatalog) {
		return domain.Book{}, ErrCannotUpdateBooks
	}
	if upd.TotalCopies != nil {
		if *upd.TotalCopies < 0 {
			return domain.Book{}, validation(ErrNegativeCopies)
		}
		book, err := a.store.AdjustBookCopies(id, *upd.TotalCopies)
		if err != nil {
			if errors.Is(err, store.ErrBookNotFound) {
				return domain.Book{}, ErrBookNotFound
			}
			return domain.Book{}, fmt.Errorf("adjust copies: %w", err)
		}
		return book, nil
	}

	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return domain.Book{}, validation(ErrTitleRequired)
		}
		book.Title = title
	}
	if upd.Author != nil {
		author := strings.TrimSpace(*upd.Author)
		if author == "" {
			return domain.Book{}, validation(ErrAuthorRequired)
		}
		book.Author = author
	}
	if err := a.store.SaveBook(book); err != nil {
		if errors.Is(err, store.ErrDuplicateBook) {
			return domain.Book{}, validation(ErrDuplicateBook)
		}
		if errors.Is(err, store.ErrBookNotFound) {
			return domain.Book{}, ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return a.GetBook(id)
}

// DeleteBook removes a catalog entry unless copies are still out.
func (a *App) DeleteBook(caller domain.User, id string) error {
	if !authz.Can(caller.UserType, authz.ManageCatalog) {
		return ErrCannotDeleteBooks
	}
	if err := a.store.DeleteBook(id); err != nil {
		switch {
		case errors.Is(err, store.ErrBookNotFound):
			return ErrBookNotFound
		case errors.Is(err, store.ErrCopiesBorrowed):
			return ErrCopiesBorrowed
		default:
			return fmt.Errorf("delete book: %w", err)
		}
	}
	return nil
}
