// Package service holds the business rules of the bookshelf API. Services
// validate input, call the repositories and return apperror values the
// handler layer maps to HTTP statuses.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
	"github.com/sakif/bookshelf/internal/storage"
)

const (
	MaxTitleLength       = 300
	MaxDescriptionLength = 10000
	DefaultMaxUpload     = 50 << 20
	DownloadURLExpiry    = 15 * time.Minute
)

// BookService manages book records, share grants and uploaded book files.
// The object store is optional; without it file operations return
// apperror.ErrUnavailable.
type BookService struct {
	repo      repository.BookRepository
	files     storage.ObjectStore
	maxUpload int64
	logger    *slog.Logger
}

// NewBookService creates a BookService. files may be nil.
func NewBookService(repo repository.BookRepository, files storage.ObjectStore, maxUpload int64, logger *slog.Logger) *BookService {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &BookService{
		repo:      repo,
		files:     files,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Create stores a new book. The server assigns the id and upload time and
// ignores any shared_with list in the input.
func (s *BookService) Create(ctx context.Context, in model.Book) (*model.Book, error) {
	book := in.Clone()
	book.ID = ""
	book.SharedWith = nil
	book.FileKey = ""
	book.FileURL = ""
	book.Title = strings.TrimSpace(book.Title)
	book.UploadedBy = strings.TrimSpace(book.UploadedBy)

	if err := validateBook(&book); err != nil {
		return nil, err
	}
	if book.UploadedBy == "" {
		return nil, apperror.ValidationFailed("uploaded_by", "uploaded_by is required")
	}

	if err := s.repo.CreateBook(ctx, &book); err != nil {
		s.logger.Error("failed to create book",
			slog.String("title", book.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating book: %w", err)
	}

	s.logger.Info("book created",
		slog.String("id", book.ID),
		slog.String("uploadedBy", book.UploadedBy),
	)
	return &book, nil
}

func validateBook(b *model.Book) error {
	if b.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(b.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if len(b.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if b.Pages != nil && *b.Pages < 0 {
		return apperror.ValidationFailed("pages", "pages must not be negative")
	}
	return nil
}

// Get returns one book with its shared_with list.
func (s *BookService) Get(ctx context.Context, id string) (*model.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "book ID is required")
	}
	return s.repo.GetBook(ctx, id)
}

// ListPublic returns public books matching filter, newest first.
func (s *BookService) ListPublic(ctx context.Context, filter repository.BookFilter) ([]model.Book, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	filter.Genre = strings.TrimSpace(filter.Genre)
	if len(filter.Query) > MaxTitleLength {
		return nil, apperror.ValidationFailed("q",
			fmt.Sprintf("q must be %d characters or less", MaxTitleLength))
	}

	books, err := s.repo.ListPublicBooks(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list public books", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing public books: %w", err)
	}
	return books, nil
}

// ListByOwner returns every book ownerID uploaded, private ones included.
func (s *BookService) ListByOwner(ctx context.Context, ownerID string) ([]model.Book, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, apperror.ValidationFailed("uploadedBy", "owner is required")
	}
	books, err := s.repo.ListBooksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing books uploaded by %s: %w", ownerID, err)
	}
	return books, nil
}

// ListSharedWith returns the books shared with userID.
func (s *BookService) ListSharedWith(ctx context.Context, userID string) ([]model.Book, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "userId parameter required")
	}
	books, err := s.repo.ListBooksSharedWith(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing books shared with %s: %w", userID, err)
	}
	return books, nil
}

// Update merges the supplied fields into an existing book.
func (s *BookService) Update(ctx context.Context, id string, patch model.BookPatch) (*model.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(book)
	book.Title = strings.TrimSpace(book.Title)
	if err := validateBook(book); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("updating book %s: %w", book.ID, err)
	}

	s.logger.Info("book updated", slog.String("id", book.ID))
	return book, nil
}

// Delete removes a book together with its share grants. Deleting an unknown
// book succeeds. An uploaded file is removed from object storage on a best
// effort basis.
func (s *BookService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "book ID is required")
	}

	var fileKey string
	if book, err := s.repo.GetBook(ctx, id); err == nil {
		fileKey = book.FileKey
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("loading book %s: %w", id, err)
	}

	if err := s.repo.DeleteBook(ctx, id); err != nil {
		s.logger.Error("failed to delete book",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting book %s: %w", id, err)
	}

	if fileKey != "" && s.files != nil {
		if err := s.files.Delete(ctx, fileKey); err != nil {
			s.logger.Warn("failed to delete book file",
				slog.String("id", id),
				slog.String("key", fileKey),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("book deleted", slog.String("id", id))
	return nil
}

// Share grants userID access to a book. Sharing twice is a no-op.
func (s *BookService) Share(ctx context.Context, bookID, userID string) error {
	bookID = strings.TrimSpace(bookID)
	userID = strings.TrimSpace(userID)
	if bookID == "" {
		return apperror.ValidationFailed("bookId", "bookId is required")
	}
	if userID == "" {
		return apperror.ValidationFailed("userId", "userId is required")
	}

	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return err
	}
	if err := s.repo.ShareBook(ctx, bookID, userID); err != nil {
		return fmt.Errorf("sharing book %s: %w", bookID, err)
	}

	s.logger.Info("book shared",
		slog.String("bookID", bookID),
		slog.String("userID", userID),
	)
	return nil
}

// FileUpload is a book file received from a client.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadFile stores the book's file in object storage and records its key.
// For PDFs the page count is filled in when the book has none.
func (s *BookService) UploadFile(ctx context.Context, bookID string, up FileUpload) (*model.Book, error) {
	if s.files == nil {
		return nil, apperror.Unavailable("file storage is not configured")
	}
	if up.Body == nil {
		return nil, apperror.ValidationFailed("file", "file is required")
	}
	if up.Size > s.maxUpload {
		return nil, apperror.ValidationFailed("file",
			fmt.Sprintf("file must be %d bytes or less", s.maxUpload))
	}

	book, err := s.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, s.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, apperror.ValidationFailed("file",
			fmt.Sprintf("file must be %d bytes or less", s.maxUpload))
	}
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("file", "file is empty")
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if book.Pages == nil && isPDF(up.Filename, contentType) {
		if pages, ok := s.countPDFPages(data); ok {
			book.Pages = &pages
		}
	}

	key := storage.BookFileKey(book.ID, up.Filename)
	if err := s.files.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.logger.Error("failed to store book file",
			slog.String("id", book.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing book file: %w", err)
	}

	oldKey := book.FileKey
	book.FileKey = key
	book.FileURL = "/api/books/" + book.ID + "/file"
	if err := s.repo.UpdateBook(ctx, book); err != nil {
		_ = s.files.Delete(ctx, key)
		return nil, fmt.Errorf("recording book file: %w", err)
	}
	if oldKey != "" && oldKey != key {
		if err := s.files.Delete(ctx, oldKey); err != nil {
			s.logger.Warn("failed to delete replaced book file",
				slog.String("key", oldKey),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("book file uploaded",
		slog.String("id", book.ID),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return book, nil
}

// FileURL returns a short-lived download URL for the book's file.
func (s *BookService) FileURL(ctx context.Context, bookID string) (string, error) {
	if s.files == nil {
		return "", apperror.Unavailable("file storage is not configured")
	}
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return "", err
	}
	if book.FileKey == "" {
		return "", apperror.NotFound("book file", book.ID)
	}

	url, err := s.files.PresignGet(ctx, book.FileKey, DownloadURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presigning book file: %w", err)
	}
	return url, nil
}

func isPDF(filename, contentType string) bool {
	return strings.EqualFold(path.Ext(filename), ".pdf") ||
		strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

// countPDFPages returns ok=false for files the PDF reader rejects. The
// reader panics on some malformed inputs.
func (s *BookService) countPDFPages(data []byte) (pages int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("pdf reader panicked", slog.Any("panic", r))
			pages, ok = 0, false
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.logger.Warn("could not read pdf", slog.String("error", err.Error()))
		return 0, false
	}
	n := r.NumPage()
	return n, n > 0
}
