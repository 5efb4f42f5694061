package store

import (
	"sort"
	"sync"
	"time"

	"librarium/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs the business-rule
// and handler tests so they run without Postgres. A single mutex makes
// every inventory mutation atomic, matching the transactional
// guarantees of GormStore.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]domain.User
	email   map[string]string // email -> user ID
	books   map[string]domain.Book
	records map[string]domain.BorrowRecord
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		email:   make(map[string]string),
		books:   make(map[string]domain.Book),
		records: make(map[string]domain.BorrowRecord),
	}
}

// CreateUser registers a user, rejecting duplicate emails.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.email[u.Email]; exists {
		return ErrDuplicateEmail
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// SaveUser replaces an existing user record.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.users[u.ID]; ok && old.Email != u.Email {
		delete(m.email, old.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsersByType returns users of one role ordered by creation time.
func (m *MemoryStore) ListUsersByType(t domain.UserType) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.User, 0)
	for _, u := range m.users {
		if u.UserType == t {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// DeleteUser removes a user and their borrow records.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	delete(m.email, u.Email)
	for recID, rec := range m.records {
		if rec.UserID == id {
			delete(m.records, recID)
		}
	}
	return nil
}

// CreateBook inserts a catalog entry, rejecting duplicate (title, author).
func (m *MemoryStore) CreateBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.books {
		if other.Title == b.Title && other.Author == b.Author {
			return ErrDuplicateBook
		}
	}
	m.books[b.ID] = b
	return nil
}

// SaveBook updates title/author of an existing book.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.books[b.ID]
	if !ok {
		return ErrBookNotFound
	}
	for id, other := range m.books {
		if id != b.ID && other.Title == b.Title && other.Author == b.Author {
			return ErrDuplicateBook
		}
	}
	cur.Title = b.Title
	cur.Author = b.Author
	cur.UpdatedAt = time.Now().UTC()
	m.books[b.ID] = cur
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns all books ordered by title.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Title < res[j].Title })
	return res, nil
}

// AdjustBookCopies applies the clamp/delta total_copies rules atomically.
func (m *MemoryStore) AdjustBookCopies(id string, newTotal int) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	switch {
	case newTotal < b.AvailableCopies:
		b.TotalCopies = b.AvailableCopies
	case newTotal > b.TotalCopies:
		b.AvailableCopies += newTotal - b.TotalCopies
		b.TotalCopies = newTotal
	default:
		b.TotalCopies = newTotal
	}
	b.UpdatedAt = time.Now().UTC()
	m.books[id] = b
	return b, nil
}

// DeleteBook removes a book only when no copies are lent out.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return ErrBookNotFound
	}
	if b.AvailableCopies != b.TotalCopies {
		return ErrCopiesBorrowed
	}
	delete(m.books, id)
	return nil
}

// BorrowBook applies the check-then-act borrow sequence under the
// store lock: availability check, double-borrow check, ledger insert,
// decrement.
func (m *MemoryStore) BorrowBook(rec domain.BorrowRecord) (domain.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[rec.BookID]
	if !ok {
		return domain.BorrowRecord{}, ErrBookNotFound
	}
	if b.AvailableCopies <= 0 {
		return domain.BorrowRecord{}, ErrNoCopiesAvailable
	}
	for _, other := range m.records {
		if other.BookID == rec.BookID && other.UserID == rec.UserID && other.ReturnedAt == nil {
			return domain.BorrowRecord{}, ErrAlreadyBorrowed
		}
	}
	m.records[rec.ID] = rec
	b.AvailableCopies--
	b.UpdatedAt = time.Now().UTC()
	m.books[rec.BookID] = b
	return rec, nil
}

// ReturnBook closes the open record and restores the copy.
func (m *MemoryStore) ReturnBook(bookID, userID string, returnedAt time.Time) (domain.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if rec.BookID == bookID && rec.UserID == userID && rec.ReturnedAt == nil {
			at := returnedAt.UTC()
			rec.ReturnedAt = &at
			m.records[id] = rec
			if b, ok := m.books[bookID]; ok {
				b.AvailableCopies++
				b.UpdatedAt = time.Now().UTC()
				m.books[bookID] = b
			}
			return rec, nil
		}
	}
	return domain.BorrowRecord{}, ErrOpenRecordNotFound
}

// ListOpenRecords returns a user's open records ordered by borrow time.
func (m *MemoryStore) ListOpenRecords(userID string) ([]domain.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.BorrowRecord, 0)
	for _, rec := range m.records {
		if rec.UserID == userID && rec.ReturnedAt == nil {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].BorrowedAt.Before(res[j].BorrowedAt) })
	return res, nil
}

// HasOpenRecords reports whether the user has any book still out.
func (m *MemoryStore) HasOpenRecords(userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.UserID == userID && rec.ReturnedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

// ListOverdueRecords returns open records past their due date.
func (m *MemoryStore) ListOverdueRecords(now time.Time) ([]domain.BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.BorrowRecord, 0)
	for _, rec := range m.records {
		if rec.Overdue(now) {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DueDate.Before(res[j].DueDate) })
	return res, nil
}

// SeedRecord inserts a borrow record directly, bypassing inventory
// checks. Test helper for overdue scenarios.
func (m *MemoryStore) SeedRecord(rec domain.BorrowRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
}
