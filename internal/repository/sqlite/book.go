package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

var _ repository.BookRepository = (*DB)(nil)

const bookColumns = `id, title, author, description, cover_url, file_url, file_key,
	uploaded_by, uploaded_at, genre, pages, language, is_public`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBook reads one row selected with bookColumns.
//
// pages is nullable, so it goes through sql.NullInt64 and becomes a nil
// *int when the column is NULL.
func scanBook(row rowScanner) (model.Book, error) {
	var (
		b     model.Book
		pages sql.NullInt64
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.Description, &b.CoverURL, &b.FileURL, &b.FileKey,
		&b.UploadedBy, &b.UploadedAt, &b.Genre, &pages, &b.Language, &b.IsPublic,
	)
	if err != nil {
		return model.Book{}, err
	}
	if pages.Valid {
		p := int(pages.Int64)
		b.Pages = &p
	}
	b.SharedWith = []string{}
	return b, nil
}

func nullablePages(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// CreateBook inserts a new book, assigning its ID and UploadedAt.
func (db *DB) CreateBook(ctx context.Context, book *model.Book) error {
	book.ID = xid.New().String()
	book.UploadedAt = time.Now().UTC()
	book.SharedWith = []string{}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO books (`+bookColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Author,
		book.Description,
		book.CoverURL,
		book.FileURL,
		book.FileKey,
		book.UploadedBy,
		book.UploadedAt,
		book.Genre,
		nullablePages(book.Pages),
		book.Language,
		boolToInt(book.IsPublic),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating book: %w", err)
	}
	return nil
}

// GetBook returns one book with its shared-with set filled in.
func (db *DB) GetBook(ctx context.Context, id string) (*model.Book, error) {
	book, err := scanBook(db.conn.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("book", id)
		}
		return nil, fmt.Errorf("sqlite: getting book %s: %w", id, err)
	}

	books := []model.Book{book}
	if err := db.attachShares(ctx, books); err != nil {
		return nil, err
	}
	return &books[0], nil
}

// ListPublicBooks returns the public books matching filter, newest first.
func (db *DB) ListPublicBooks(ctx context.Context, filter repository.BookFilter) ([]model.Book, error) {
	var (
		where = []string{"is_public = 1"}
		args  []any
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "(instr(lower(title), lower(?)) > 0 OR instr(lower(author), lower(?)) > 0)")
		args = append(args, q, q)
	}
	if g := strings.TrimSpace(filter.Genre); g != "" {
		where = append(where, "lower(genre) = lower(?)")
		args = append(args, g)
	}

	return db.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY uploaded_at DESC, rowid DESC`,
		args...,
	)
}

// ListBooksByOwner returns every book ownerID uploaded, public or not,
// newest first.
func (db *DB) ListBooksByOwner(ctx context.Context, ownerID string) ([]model.Book, error) {
	return db.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books
		 WHERE uploaded_by = ?
		 ORDER BY uploaded_at DESC, rowid DESC`,
		ownerID,
	)
}

// ListBooksSharedWith returns the books userID holds a grant for, most
// recently shared first.
func (db *DB) ListBooksSharedWith(ctx context.Context, userID string) ([]model.Book, error) {
	return db.queryBooks(ctx,
		`SELECT b.id, b.title, b.author, b.description, b.cover_url, b.file_url, b.file_key,
		        b.uploaded_by, b.uploaded_at, b.genre, b.pages, b.language, b.is_public
		 FROM books b
		 JOIN book_shares s ON s.book_id = b.id
		 WHERE s.user_id = ?
		 ORDER BY s.shared_at DESC, s.rowid DESC`,
		userID,
	)
}

func (db *DB) queryBooks(ctx context.Context, query string, args ...any) ([]model.Book, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing books: %w", err)
	}
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating books: %w", err)
	}
	// rows must be closed before the next query: with a single-connection
	// pool a second query would otherwise wait forever.
	rows.Close()

	if err := db.attachShares(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// attachShares fills SharedWith for every book with one query.
func (db *DB) attachShares(ctx context.Context, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}

	index := make(map[string]int, len(books))
	placeholders := make([]string, 0, len(books))
	args := make([]any, 0, len(books))
	for i, b := range books {
		index[b.ID] = i
		placeholders = append(placeholders, "?")
		args = append(args, b.ID)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT book_id, user_id FROM book_shares
		 WHERE book_id IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY shared_at, rowid`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading book shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookID, userID string
		if err := rows.Scan(&bookID, &userID); err != nil {
			return fmt.Errorf("sqlite: scanning book share: %w", err)
		}
		i := index[bookID]
		books[i].SharedWith = append(books[i].SharedWith, userID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating book shares: %w", err)
	}
	return nil
}

// UpdateBook writes every mutable column. ID, owner and UploadedAt never change.
func (db *DB) UpdateBook(ctx context.Context, book *model.Book) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE books
		 SET title = ?, author = ?, description = ?, cover_url = ?, file_url = ?, file_key = ?,
		     genre = ?, pages = ?, language = ?, is_public = ?
		 WHERE id = ?`,
		book.Title,
		book.Author,
		book.Description,
		book.CoverURL,
		book.FileURL,
		book.FileKey,
		book.Genre,
		nullablePages(book.Pages),
		book.Language,
		boolToInt(book.IsPublic),
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating book %s: %w", book.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("book", book.ID)
	}
	return nil
}

// DeleteBook removes the book row and its share rows in one transaction.
//
// If either statement fails the transaction rolls back, so a failure can
// never leave share rows pointing at a book that no longer exists.
func (db *DB) DeleteBook(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning delete of book %s: %w", id, err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting book %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_shares WHERE book_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting shares of book %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing delete of book %s: %w", id, err)
	}
	return nil
}

// ShareBook records a grant. The UNIQUE(book_id, user_id) constraint plus
// INSERT OR IGNORE make repeated grants a no-op.
func (db *DB) ShareBook(ctx context.Context, bookID, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO book_shares (id, book_id, user_id, shared_at)
		 VALUES (?, ?, ?, ?)`,
		xid.New().String(),
		bookID,
		userID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: sharing book %s with %s: %w", bookID, userID, err)
	}
	return nil
}
