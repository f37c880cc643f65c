// Package books stores an account's private book collection.
//
// Each account owns a SQLite database in its books/ directory holding one row per feed
// entry, plus a content/ directory for downloaded book files.
//
//	<account>/books/
//	├── books.db
//	└── content/<hash>.epub
//
// # Usage
//
//	opener := books.NewSQLiteDatabase(logger.Warn)
//	collection, err := opener.Open(accountID, filepath.Join(accountDir, "books"))
//	entry, created, err := collection.Put(feedEntry)
package books

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/patron/internal/feed"
)

const (
	databaseFileName = "books.db"
	contentDirName   = "content"
)

// ErrNotFound is returned when no entry exists for a book ID.
var ErrNotFound = errors.New("book entry not found")

// Collection is the book database of one account.
type Collection interface {
	AccountID() int
	Directory() string
	IDs() ([]string, error)
	Entries() ([]Entry, error)
	Entry(id string) (*Entry, error)
	// Put creates or replaces the entry for fe.ID, reporting whether it was created.
	// Locally downloaded content survives a replace.
	Put(fe feed.Entry) (*Entry, bool, error)
	// Delete removes the entry and any downloaded content.
	Delete(id string) error
	SetContent(id string, data []byte) (*Entry, error)
	DeleteContent(id string) (*Entry, error)
	Close() error
}

// Opener opens the book collection of an account.
type Opener interface {
	Open(accountID int, dir string) (Collection, error)
}

// SQLiteDatabase opens gorm/SQLite backed collections.
type SQLiteDatabase struct {
	logLevel logger.LogLevel
}

// NewSQLiteDatabase creates an opener whose connections log at logLevel.
func NewSQLiteDatabase(logLevel logger.LogLevel) *SQLiteDatabase {
	return &SQLiteDatabase{logLevel: logLevel}
}

// Open opens or creates the collection in dir.
func (d *SQLiteDatabase) Open(accountID int, dir string) (Collection, error) {
	if err := os.MkdirAll(filepath.Join(dir, contentDirName), 0755); err != nil {
		return nil, fmt.Errorf("create book directory: %w", err)
	}

	dsn := filepath.Join(dir, databaseFileName) + "?_busy_timeout=5000&_journal=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(d.logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open book database: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate book database: %w", err)
	}

	return &Repository{db: db, dir: dir, accountID: accountID}, nil
}

// Repository is the SQLite implementation of Collection.
type Repository struct {
	db        *gorm.DB
	dir       string
	accountID int
}

func (r *Repository) AccountID() int {
	return r.accountID
}

func (r *Repository) Directory() string {
	return r.dir
}

// IDs returns every book ID in the collection in ascending order.
func (r *Repository) IDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&Entry{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// Entries returns every entry in ascending ID order.
func (r *Repository) Entries() ([]Entry, error) {
	var entries []Entry
	err := r.db.Order("id ASC").Find(&entries).Error
	return entries, err
}

// Entry retrieves one entry by book ID.
func (r *Repository) Entry(id string) (*Entry, error) {
	var entry Entry
	err := r.db.Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Repository) Put(fe feed.Entry) (*Entry, bool, error) {
	if fe.ID == "" {
		return nil, false, errors.New("feed entry has no id")
	}

	var existing Entry
	err := r.db.Where("id = ?", fe.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry := Entry{AccountID: r.accountID}
		if err := entry.apply(fe); err != nil {
			return nil, false, err
		}
		if err := r.db.Create(&entry).Error; err != nil {
			return nil, false, fmt.Errorf("create book entry %s: %w", fe.ID, err)
		}
		return &entry, true, nil
	case err != nil:
		return nil, false, err
	}

	if err := existing.apply(fe); err != nil {
		return nil, false, err
	}
	if err := r.db.Save(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("update book entry %s: %w", fe.ID, err)
	}
	return &existing, false, nil
}

func (r *Repository) Delete(id string) error {
	entry, err := r.Entry(id)
	if err != nil {
		return err
	}
	if err := r.db.Delete(&Entry{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete book entry %s: %w", id, err)
	}
	return removeContent(entry.ContentPath)
}

// SetContent stores data as the book's downloaded content, replacing any previous file.
func (r *Repository) SetContent(id string, data []byte) (*Entry, error) {
	entry, err := r.Entry(id)
	if err != nil {
		return nil, err
	}

	contentPath := r.contentPath(id)
	tmpFile, err := os.CreateTemp(filepath.Dir(contentPath), "content_tmp_")
	if err != nil {
		return nil, fmt.Errorf("create content file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return nil, fmt.Errorf("write content file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("close content file: %w", err)
	}
	if err := os.Rename(tmpPath, contentPath); err != nil {
		return nil, fmt.Errorf("store content file: %w", err)
	}

	entry.ContentPath = contentPath
	if err := r.db.Model(entry).Update("content_path", contentPath).Error; err != nil {
		return nil, fmt.Errorf("record content path of %s: %w", id, err)
	}
	return entry, nil
}

// DeleteContent removes the book's downloaded content, keeping the entry.
func (r *Repository) DeleteContent(id string) (*Entry, error) {
	entry, err := r.Entry(id)
	if err != nil {
		return nil, err
	}
	if entry.ContentPath == "" {
		return entry, nil
	}
	if err := removeContent(entry.ContentPath); err != nil {
		return nil, err
	}
	entry.ContentPath = ""
	if err := r.db.Model(entry).Update("content_path", "").Error; err != nil {
		return nil, fmt.Errorf("clear content path of %s: %w", id, err)
	}
	return entry, nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// contentPath derives a filesystem-safe name from the opaque book ID.
func (r *Repository) contentPath(id string) string {
	hash := sha256.Sum256([]byte(id))
	return filepath.Join(r.dir, contentDirName, fmt.Sprintf("%x.epub", hash[:12]))
}

func removeContent(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove content %s: %w", path, err)
	}
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
