package pagestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Page is one generated documentation artifact.
type Page struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SQLiteStore persists generated pages in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens the page database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		title TEXT,
		content TEXT,
		updated_at TIMESTAMP
	);`)
	return err
}

// SavePage upserts a page.
func (s *SQLiteStore) SavePage(ctx context.Context, page *Page) error {
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, title, content, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			content=excluded.content,
			updated_at=excluded.updated_at
	`, page.ID, page.Title, page.Content, page.UpdatedAt)
	return err
}

// GetPage retrieves a page by ID, returning sql.ErrNoRows when absent.
func (s *SQLiteStore) GetPage(ctx context.Context, id string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, content, updated_at FROM pages WHERE id = ?`, id)

	var page Page
	if err := row.Scan(&page.ID, &page.Title, &page.Content, &page.UpdatedAt); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListPages returns every page ordered by ID.
func (s *SQLiteStore) ListPages(ctx context.Context) ([]*Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, updated_at FROM pages ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.ID, &page.Title, &page.Content, &page.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, &page)
	}
	return pages, rows.Err()
}

// DeletePage removes a page. Deleting an absent page is not an error.
func (s *SQLiteStore) DeletePage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	return err
}
