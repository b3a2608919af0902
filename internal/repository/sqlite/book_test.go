package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives each test a fresh database that disappears on Close.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestBook(t *testing.T, db *DB, title, owner string, public bool) *model.Book {
	t.Helper()
	book := &model.Book{
		Title:      title,
		Author:     "Author of " + title,
		UploadedBy: owner,
		Genre:      "Classic",
		Language:   "en",
		IsPublic:   public,
	}
	if err := db.CreateBook(context.Background(), book); err != nil {
		t.Fatalf("failed to create test book: %v", err)
	}
	return book
}

func countShares(t *testing.T, db *DB, bookID string) int {
	t.Helper()
	var n int
	err := db.conn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM book_shares WHERE book_id = ?`, bookID,
	).Scan(&n)
	if err != nil {
		t.Fatalf("counting shares: %v", err)
	}
	return n
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreateBook_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	pages := 1225

	book := &model.Book{
		Title:       "War and Peace",
		Author:      "Leo Tolstoy",
		Description: "Epic novel.",
		CoverURL:    "https://example.com/cover.jpg",
		UploadedBy:  "user-1",
		Genre:       "Classic",
		Pages:       &pages,
		Language:    "ru",
		IsPublic:    true,
	}
	if err := db.CreateBook(context.Background(), book); err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}
	if book.ID == "" {
		t.Error("CreateBook() did not set book.ID")
	}
	if book.UploadedAt.IsZero() {
		t.Error("CreateBook() did not set book.UploadedAt")
	}

	found, err := db.GetBook(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if found.Title != book.Title || found.Author != book.Author || found.Description != book.Description {
		t.Errorf("GetBook() = %+v, want fields of %+v", found, book)
	}
	if found.Pages == nil || *found.Pages != 1225 {
		t.Errorf("Pages = %v, want 1225", found.Pages)
	}
	if !found.IsPublic {
		t.Error("IsPublic = false, want true")
	}
	if !found.UploadedAt.Equal(book.UploadedAt) {
		t.Errorf("UploadedAt = %v, want %v", found.UploadedAt, book.UploadedAt)
	}
	if len(found.SharedWith) != 0 {
		t.Errorf("SharedWith = %v, want empty", found.SharedWith)
	}
}

func TestCreateBook_NilPages(t *testing.T) {
	db := newTestDB(t)
	book := createTestBook(t, db, "No pages", "user-1", false)

	found, err := db.GetBook(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if found.Pages != nil {
		t.Errorf("Pages = %v, want nil", *found.Pages)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetBook(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetBook() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST
// =========================================================================

func TestListPublicBooks_NewestFirstAndPublicOnly(t *testing.T) {
	db := newTestDB(t)
	first := createTestBook(t, db, "first", "user-1", true)
	createTestBook(t, db, "private", "user-1", false)
	second := createTestBook(t, db, "second", "user-2", true)

	books, err := db.ListPublicBooks(context.Background(), repository.BookFilter{})
	if err != nil {
		t.Fatalf("ListPublicBooks() error = %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("ListPublicBooks() returned %d books, want 2", len(books))
	}
	if books[0].ID != second.ID || books[1].ID != first.ID {
		t.Errorf("order = [%s %s], want [%s %s]", books[0].ID, books[1].ID, second.ID, first.ID)
	}
}

func TestListPublicBooks_Empty(t *testing.T) {
	db := newTestDB(t)

	books, err := db.ListPublicBooks(context.Background(), repository.BookFilter{})
	if err != nil {
		t.Fatalf("ListPublicBooks() error = %v", err)
	}
	if books == nil || len(books) != 0 {
		t.Errorf("ListPublicBooks() = %v, want empty non-nil slice", books)
	}
}

func TestListPublicBooks_Filter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	add := func(title, author, genre string, public bool) *model.Book {
		t.Helper()
		b := &model.Book{Title: title, Author: author, Genre: genre, UploadedBy: "user-1", IsPublic: public}
		if err := db.CreateBook(ctx, b); err != nil {
			t.Fatalf("CreateBook() error = %v", err)
		}
		return b
	}
	dune := add("Dune", "Frank Herbert", "Sci-Fi", true)
	emma := add("Emma", "Jane Austen", "Romance", true)
	persuasion := add("Persuasion", "Jane Austen", "romance", true)
	add("Hidden Austen", "Jane Austen", "Romance", false)

	tests := []struct {
		name   string
		filter repository.BookFilter
		want   []string
	}{
		{"no filter", repository.BookFilter{}, []string{persuasion.ID, emma.ID, dune.ID}},
		{"title substring", repository.BookFilter{Query: "UN"}, []string{dune.ID}},
		{"author substring", repository.BookFilter{Query: "austen"}, []string{persuasion.ID, emma.ID}},
		{"genre ignores case", repository.BookFilter{Genre: "ROMANCE"}, []string{persuasion.ID, emma.ID}},
		{"genre is exact", repository.BookFilter{Genre: "Roman"}, []string{}},
		{"query and genre", repository.BookFilter{Query: "emma", Genre: "romance"}, []string{emma.ID}},
		{"wildcards are literal", repository.BookFilter{Query: "%"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := db.ListPublicBooks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListPublicBooks() error = %v", err)
			}
			got := make([]string, 0, len(books))
			for _, b := range books {
				got = append(got, b.ID)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("ListPublicBooks(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestListBooksByOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	public := createTestBook(t, db, "public", "user-1", true)
	createTestBook(t, db, "someone else's", "user-2", true)
	private := createTestBook(t, db, "private", "user-1", false)

	books, err := db.ListBooksByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListBooksByOwner() error = %v", err)
	}
	if len(books) != 2 || books[0].ID != private.ID || books[1].ID != public.ID {
		t.Fatalf("ListBooksByOwner() = %+v, want [%s %s]", books, private.ID, public.ID)
	}

	none, err := db.ListBooksByOwner(ctx, "user-3")
	if err != nil {
		t.Fatalf("ListBooksByOwner() error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ListBooksByOwner() = %v, want empty non-nil slice", none)
	}
}

func TestListBooksSharedWith(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	shared := createTestBook(t, db, "shared", "user-1", false)
	createTestBook(t, db, "not shared", "user-1", false)

	if err := db.ShareBook(ctx, shared.ID, "user-2"); err != nil {
		t.Fatalf("ShareBook() error = %v", err)
	}

	books, err := db.ListBooksSharedWith(ctx, "user-2")
	if err != nil {
		t.Fatalf("ListBooksSharedWith() error = %v", err)
	}
	if len(books) != 1 || books[0].ID != shared.ID {
		t.Fatalf("ListBooksSharedWith() = %+v, want only %s", books, shared.ID)
	}
	if len(books[0].SharedWith) != 1 || books[0].SharedWith[0] != "user-2" {
		t.Errorf("SharedWith = %v, want [user-2]", books[0].SharedWith)
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdateBook(t *testing.T) {
	db := newTestDB(t)
	book := createTestBook(t, db, "draft", "user-1", false)

	book.Title = "final"
	book.IsPublic = true
	if err := db.UpdateBook(context.Background(), book); err != nil {
		t.Fatalf("UpdateBook() error = %v", err)
	}

	found, err := db.GetBook(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if found.Title != "final" || !found.IsPublic {
		t.Errorf("after update got title=%q public=%v", found.Title, found.IsPublic)
	}
}

func TestUpdateBook_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateBook(context.Background(), &model.Book{ID: "nonexistent", Title: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateBook() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SHARE / DELETE
// =========================================================================

func TestShareBook_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	book := createTestBook(t, db, "shared", "user-1", false)

	for i := 0; i < 2; i++ {
		if err := db.ShareBook(ctx, book.ID, "user-2"); err != nil {
			t.Fatalf("ShareBook() call %d error = %v", i+1, err)
		}
	}

	if n := countShares(t, db, book.ID); n != 1 {
		t.Errorf("share rows = %d, want 1", n)
	}
	found, _ := db.GetBook(ctx, book.ID)
	if len(found.SharedWith) != 1 {
		t.Errorf("SharedWith = %v, want one entry", found.SharedWith)
	}
}

func TestDeleteBook_RemovesShares(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	book := createTestBook(t, db, "doomed", "user-1", true)
	other := createTestBook(t, db, "survivor", "user-1", true)
	_ = db.ShareBook(ctx, book.ID, "user-2")
	_ = db.ShareBook(ctx, book.ID, "user-3")
	_ = db.ShareBook(ctx, other.ID, "user-2")

	if err := db.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("DeleteBook() error = %v", err)
	}

	if _, err := db.GetBook(ctx, book.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetBook() after delete error = %v, want ErrNotFound", err)
	}
	if n := countShares(t, db, book.ID); n != 0 {
		t.Errorf("share rows after delete = %d, want 0", n)
	}
	if n := countShares(t, db, other.ID); n != 1 {
		t.Errorf("other book's share rows = %d, want 1", n)
	}
}

func TestDeleteBook_Absent(t *testing.T) {
	db := newTestDB(t)

	if err := db.DeleteBook(context.Background(), "nonexistent"); err != nil {
		t.Errorf("DeleteBook() on absent book error = %v, want nil", err)
	}
}

func TestDeleteBook_RollsBackOnCancelledContext(t *testing.T) {
	db := newTestDB(t)
	book := createTestBook(t, db, "kept", "user-1", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := db.DeleteBook(ctx, book.ID); err == nil {
		t.Fatal("DeleteBook() with cancelled context should fail")
	}
	if _, err := db.GetBook(context.Background(), book.ID); err != nil {
		t.Errorf("book should survive a failed delete, GetBook() error = %v", err)
	}
}
