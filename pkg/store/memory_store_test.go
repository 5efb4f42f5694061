package store

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"librarium/pkg/domain"
)

func seedBook(t *testing.T, m *MemoryStore, id string, total int) domain.Book {
	t.Helper()
	b := domain.Book{
		ID:              id,
		Title:           "Title " + id,
		Author:          "Author " + id,
		TotalCopies:     total,
		AvailableCopies: total,
	}
	if err := m.CreateBook(b); err != nil {
		t.Fatalf("create book: %v", err)
	}
	return b
}

func openRecord(bookID, userID, recID string, due time.Time) domain.BorrowRecord {
	return domain.BorrowRecord{
		ID:         recID,
		BookID:     bookID,
		UserID:     userID,
		BorrowedAt: due.Add(-30 * 24 * time.Hour),
		DueDate:    due,
	}
}

func TestMemoryStoreUserEmailUnique(t *testing.T) {
	m := NewMemoryStore()
	u := domain.User{ID: "u1", Email: "a@example.com"}
	if err := m.CreateUser(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := domain.User{ID: "u2", Email: "a@example.com"}
	if err := m.CreateUser(dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if has, _ := m.HasUserEmail("a@example.com"); !has {
		t.Fatalf("expected email to be registered")
	}
}

func TestMemoryStoreBookTitleAuthorUnique(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 1)
	dup := domain.Book{ID: "b2", Title: "Title b1", Author: "Author b1", TotalCopies: 1, AvailableCopies: 1}
	if err := m.CreateBook(dup); !errors.Is(err, ErrDuplicateBook) {
		t.Fatalf("expected ErrDuplicateBook, got %v", err)
	}
}

func TestBorrowDecrementsAvailability(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 2)

	now := time.Now().UTC()
	if _, err := m.BorrowBook(openRecord("b1", "u1", "r1", now.Add(30*24*time.Hour))); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	b, ok, err := m.GetBook("b1")
	if err != nil || !ok {
		t.Fatalf("get book: ok=%v err=%v", ok, err)
	}
	if b.AvailableCopies != 1 || b.TotalCopies != 2 {
		t.Fatalf("expected 1/2 after borrow, got %d/%d", b.AvailableCopies, b.TotalCopies)
	}
}

func TestBorrowSameBookTwiceRejected(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 5)

	due := time.Now().UTC().Add(30 * 24 * time.Hour)
	if _, err := m.BorrowBook(openRecord("b1", "u1", "r1", due)); err != nil {
		t.Fatalf("first borrow: %v", err)
	}
	if _, err := m.BorrowBook(openRecord("b1", "u1", "r2", due)); !errors.Is(err, ErrAlreadyBorrowed) {
		t.Fatalf("expected ErrAlreadyBorrowed, got %v", err)
	}
}

func TestBorrowWithNoCopies(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 1)

	due := time.Now().UTC().Add(30 * 24 * time.Hour)
	if _, err := m.BorrowBook(openRecord("b1", "u1", "r1", due)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := m.BorrowBook(openRecord("b1", "u2", "r2", due)); !errors.Is(err, ErrNoCopiesAvailable) {
		t.Fatalf("expected ErrNoCopiesAvailable, got %v", err)
	}
}

func TestReturnRestoresAvailability(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 1)

	due := time.Now().UTC().Add(30 * 24 * time.Hour)
	if _, err := m.BorrowBook(openRecord("b1", "u1", "r1", due)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	returnedAt := time.Now().UTC()
	rec, err := m.ReturnBook("b1", "u1", returnedAt)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if rec.ReturnedAt == nil || !rec.ReturnedAt.Equal(returnedAt) {
		t.Fatalf("expected returned_at %v, got %v", returnedAt, rec.ReturnedAt)
	}
	b, _, _ := m.GetBook("b1")
	if b.AvailableCopies != 1 {
		t.Fatalf("expected availability restored to 1, got %d", b.AvailableCopies)
	}

	if _, err := m.ReturnBook("b1", "u1", returnedAt); !errors.Is(err, ErrOpenRecordNotFound) {
		t.Fatalf("second return should fail with ErrOpenRecordNotFound, got %v", err)
	}
}

func TestReturnWithoutBorrow(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 1)
	if _, err := m.ReturnBook("b1", "u1", time.Now().UTC()); !errors.Is(err, ErrOpenRecordNotFound) {
		t.Fatalf("expected ErrOpenRecordNotFound, got %v", err)
	}
}

func TestConcurrentBorrowConsumesLastCopyOnce(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 1)

	const borrowers = 16
	due := time.Now().UTC().Add(30 * 24 * time.Hour)
	results := make([]error, borrowers)
	var g errgroup.Group
	for i := 0; i < borrowers; i++ {
		i := i
		g.Go(func() error {
			rec := openRecord("b1", "u"+string(rune('a'+i)), "r"+string(rune('a'+i)), due)
			_, err := m.BorrowBook(rec)
			results[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrNoCopiesAvailable) {
			t.Fatalf("unexpected borrow error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one borrower to win, got %d", succeeded)
	}
	b, _, _ := m.GetBook("b1")
	if b.AvailableCopies != 0 {
		t.Fatalf("expected 0 available after the race, got %d", b.AvailableCopies)
	}
}

func TestAdjustBookCopies(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 5)

	due := time.Now().UTC().Add(30 * 24 * time.Hour)
	for _, u := range []string{"u1", "u2"} {
		if _, err := m.BorrowBook(openRecord("b1", u, "r-"+u, due)); err != nil {
			t.Fatalf("borrow %s: %v", u, err)
		}
	}
	// 3 available of 5

	b, err := m.AdjustBookCopies("b1", 8)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if b.TotalCopies != 8 || b.AvailableCopies != 6 {
		t.Fatalf("expected 6/8 after grow, got %d/%d", b.AvailableCopies, b.TotalCopies)
	}

	// Shrinking below availability clamps the total to what is on the
	// shelf rather than failing.
	b, err = m.AdjustBookCopies("b1", 2)
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if b.TotalCopies != 6 || b.AvailableCopies != 6 {
		t.Fatalf("expected clamp to 6/6, got %d/%d", b.AvailableCopies, b.TotalCopies)
	}

	if _, err := m.AdjustBookCopies("missing", 3); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestDeleteBookWithOpenLoans(t *testing.T) {
	m := NewMemoryStore()
	seedBook(t, m, "b1", 2)

	due := time.Now().UTC().Add(30 * 24 * time.Hour)
	if _, err := m.BorrowBook(openRecord("b1", "u1", "r1", due)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := m.DeleteBook("b1"); !errors.Is(err, ErrCopiesBorrowed) {
		t.Fatalf("expected ErrCopiesBorrowed, got %v", err)
	}

	if _, err := m.ReturnBook("b1", "u1", time.Now().UTC()); err != nil {
		t.Fatalf("return: %v", err)
	}
	if err := m.DeleteBook("b1"); err != nil {
		t.Fatalf("delete after return: %v", err)
	}
	if _, ok, _ := m.GetBook("b1"); ok {
		t.Fatalf("book should be gone")
	}
}

func TestListOverdueRecords(t *testing.T) {
	m := NewMemoryStore()
	now := time.Now().UTC()

	m.SeedRecord(openRecord("b1", "u1", "r1", now.Add(-48*time.Hour)))
	m.SeedRecord(openRecord("b2", "u2", "r2", now.Add(24*time.Hour)))
	returned := openRecord("b3", "u3", "r3", now.Add(-24*time.Hour))
	at := now.Add(-time.Hour)
	returned.ReturnedAt = &at
	m.SeedRecord(returned)

	overdue, err := m.ListOverdueRecords(now)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "r1" {
		t.Fatalf("expected only r1 overdue, got %+v", overdue)
	}
}

func TestDeleteUserRemovesRecords(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateUser(domain.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	rec := openRecord("b1", "u1", "r1", time.Now().UTC())
	at := time.Now().UTC()
	rec.ReturnedAt = &at
	m.SeedRecord(rec)

	if err := m.DeleteUser("u1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, ok, _ := m.GetUserByID("u1"); ok {
		t.Fatalf("user should be gone")
	}
	if has, _ := m.HasOpenRecords("u1"); has {
		t.Fatalf("records should be gone with the user")
	}
}
