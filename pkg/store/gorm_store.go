package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"librarium/pkg/domain"
)

const migrateLockID int64 = 52110734

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &BorrowRecordModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'borrow_record_models'
					AND constraint_name = 'borrow_record_models_book_id_fkey'
				) THEN
					ALTER TABLE borrow_record_models
					ADD CONSTRAINT borrow_record_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'borrow_record_models'
					AND constraint_name = 'borrow_record_models_user_id_fkey'
				) THEN
					ALTER TABLE borrow_record_models
					ADD CONSTRAINT borrow_record_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure borrow record foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a new user, rejecting duplicate emails.
func (s *GormStore) CreateUser(u domain.User) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&UserModel{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
		model := userToModel(u)
		return tx.Create(&model).Error
	})
}

// SaveUser updates an existing user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "user_type", "is_active", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsersByType returns users of one role ordered by created_at.
func (s *GormStore) ListUsersByType(t domain.UserType) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Where("user_type = ?", int(t)).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// DeleteUser removes a user; borrow records follow via FK cascade.
func (s *GormStore) DeleteUser(id string) error {
	res := s.db.Delete(&UserModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateBook inserts a new catalog entry, rejecting duplicate (title, author).
func (s *GormStore) CreateBook(b domain.Book) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&BookModel{}).Where("title = ? AND author = ?", b.Title, b.Author).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateBook
		}
		model := bookToModel(b)
		return tx.Create(&model).Error
	})
}

// SaveBook updates title/author fields of an existing book.
func (s *GormStore) SaveBook(b domain.Book) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&BookModel{}).
			Where("title = ? AND author = ? AND id <> ?", b.Title, b.Author, b.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateBook
		}
		res := tx.Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]any{
			"title":      b.Title,
			"author":     b.Author,
			"updated_at": time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBookNotFound
		}
		return nil
	})
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books ordered by title.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Order("title ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// AdjustBookCopies changes total_copies under a row lock. Lowering total
// below available clamps it to available; raising it makes the new
// copies immediately available.
func (s *GormStore) AdjustBookCopies(id string, newTotal int) (domain.Book, error) {
	var out domain.Book
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model BookModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrBookNotFound
			}
			return err
		}
		switch {
		case newTotal < model.AvailableCopies:
			model.TotalCopies = model.AvailableCopies
		case newTotal > model.TotalCopies:
			model.AvailableCopies += newTotal - model.TotalCopies
			model.TotalCopies = newTotal
		default:
			model.TotalCopies = newTotal
		}
		model.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		out = bookFromModel(model)
		return nil
	})
	if err != nil {
		return domain.Book{}, err
	}
	return out, nil
}

// DeleteBook removes a book only when every copy is back on the shelf.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model BookModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrBookNotFound
			}
			return err
		}
		if model.AvailableCopies != model.TotalCopies {
			return ErrCopiesBorrowed
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// BorrowBook creates the ledger row and decrements available_copies in
// one transaction, taking a row lock on the book so two concurrent
// borrows cannot both consume the last copy.
func (s *GormStore) BorrowBook(rec domain.BorrowRecord) (domain.BorrowRecord, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var book BookModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, "id = ?", rec.BookID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrBookNotFound
			}
			return err
		}
		if book.AvailableCopies <= 0 {
			return ErrNoCopiesAvailable
		}
		var open int64
		if err := tx.Model(&BorrowRecordModel{}).
			Where("book_id = ? AND user_id = ? AND returned_at IS NULL", rec.BookID, rec.UserID).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrAlreadyBorrowed
		}
		model := recordToModel(rec)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		book.AvailableCopies--
		book.UpdatedAt = time.Now().UTC()
		return tx.Save(&book).Error
	})
	if err != nil {
		return domain.BorrowRecord{}, err
	}
	return rec, nil
}

// ReturnBook closes the open record and increments available_copies in
// one transaction under a book row lock.
func (s *GormStore) ReturnBook(bookID, userID string, returnedAt time.Time) (domain.BorrowRecord, error) {
	var out domain.BorrowRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var book BookModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, "id = ?", bookID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOpenRecordNotFound
			}
			return err
		}
		var model BorrowRecordModel
		if err := tx.Where("book_id = ? AND user_id = ? AND returned_at IS NULL", bookID, userID).
			First(&model).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOpenRecordNotFound
			}
			return err
		}
		at := returnedAt.UTC()
		model.ReturnedAt = &at
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		book.AvailableCopies++
		book.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&book).Error; err != nil {
			return err
		}
		out = recordFromModel(model)
		return nil
	})
	if err != nil {
		return domain.BorrowRecord{}, err
	}
	return out, nil
}

// ListOpenRecords returns a user's open records ordered by borrowed_at.
func (s *GormStore) ListOpenRecords(userID string) ([]domain.BorrowRecord, error) {
	var models []BorrowRecordModel
	if err := s.db.Where("user_id = ? AND returned_at IS NULL", userID).
		Order("borrowed_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BorrowRecord, 0, len(models))
	for _, m := range models {
		res = append(res, recordFromModel(m))
	}
	return res, nil
}

// HasOpenRecords reports whether the user has any book still out.
func (s *GormStore) HasOpenRecords(userID string) (bool, error) {
	var count int64
	if err := s.db.Model(&BorrowRecordModel{}).
		Where("user_id = ? AND returned_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListOverdueRecords returns open records with a due date in the past.
func (s *GormStore) ListOverdueRecords(now time.Time) ([]domain.BorrowRecord, error) {
	var models []BorrowRecordModel
	if err := s.db.Where("due_date < ? AND returned_at IS NULL", now.UTC()).
		Order("due_date ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BorrowRecord, 0, len(models))
	for _, m := range models {
		res = append(res, recordFromModel(m))
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		UserType:     int(u.UserType),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		UserType:     domain.UserType(m.UserType),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:              m.ID,
		Title:           m.Title,
		Author:          m.Author,
		TotalCopies:     m.TotalCopies,
		AvailableCopies: m.AvailableCopies,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func recordToModel(r domain.BorrowRecord) BorrowRecordModel {
	return BorrowRecordModel{
		ID:         r.ID,
		BookID:     r.BookID,
		UserID:     r.UserID,
		BorrowedAt: r.BorrowedAt,
		DueDate:    r.DueDate,
		ReturnedAt: r.ReturnedAt,
	}
}

func recordFromModel(m BorrowRecordModel) domain.BorrowRecord {
	return domain.BorrowRecord{
		ID:         m.ID,
		BookID:     m.BookID,
		UserID:     m.UserID,
		BorrowedAt: m.BorrowedAt,
		DueDate:    m.DueDate,
		ReturnedAt: m.ReturnedAt,
	}
}
