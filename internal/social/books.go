package social

import (
	"log/slog"
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
)

// AddBook stores a new book owned by fields.UploadedBy.
//
// The store assigns ID and UploadedAt and starts the book with an empty
// shared-with set, whatever the caller passed for those fields.
func (s *Store) AddBook(fields model.Book) (model.Book, error) {
	if strings.TrimSpace(fields.UploadedBy) == "" {
		return model.Book{}, apperror.ValidationFailed("uploaded_by", "book owner is required")
	}
	if strings.TrimSpace(fields.Title) == "" {
		return model.Book{}, apperror.ValidationFailed("title", "book title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := fields.Clone()
	b.ID = s.newID()
	b.UploadedAt = s.now()
	b.SharedWith = []string{}

	s.books[b.ID] = &b
	s.bookOrder = append(s.bookOrder, b.ID)

	s.logger.Info("book added",
		slog.String("bookID", b.ID),
		slog.String("owner", b.UploadedBy),
	)
	return b.Clone(), nil
}

// Book returns a copy of the book with the given id.
func (s *Store) Book(id string) (model.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return model.Book{}, apperror.NotFound("book", id)
	}
	return b.Clone(), nil
}

// UpdateBook merges patch into the stored book.
func (s *Store) UpdateBook(id string, patch model.BookPatch) (model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return model.Book{}, apperror.NotFound("book", id)
	}
	patch.Apply(b)
	return b.Clone(), nil
}

// DeleteBook removes the book. Its sharing grants live on the record, so
// they go with it and no view can return the book afterwards.
func (s *Store) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return apperror.NotFound("book", id)
	}
	delete(s.books, id)
	s.bookOrder = removeID(s.bookOrder, id)

	s.logger.Info("book deleted", slog.String("bookID", id))
	return nil
}

// ShareBook grants userID access to the book. Granting twice is a no-op.
func (s *Store) ShareBook(bookID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperror.ValidationFailed("userId", "userId is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[bookID]
	if !ok {
		return apperror.NotFound("book", bookID)
	}
	b.SharedWith = addID(b.SharedWith, userID)

	s.logger.Info("book shared",
		slog.String("bookID", bookID),
		slog.String("userID", userID),
	)
	return nil
}

// MyBooks returns the books uploaded by ownerID.
func (s *Store) MyBooks(ownerID string) []model.Book {
	return s.filterBooks(func(b *model.Book) bool { return b.UploadedBy == ownerID })
}

// SharedBooks returns the books userID has been granted access to.
func (s *Store) SharedBooks(userID string) []model.Book {
	return s.filterBooks(func(b *model.Book) bool { return contains(b.SharedWith, userID) })
}

// PublicBooks returns every book flagged public.
func (s *Store) PublicBooks() []model.Book {
	return s.filterBooks(func(b *model.Book) bool { return b.IsPublic })
}

// filterBooks recomputes a view from the catalog on every call. There is a
// single source of truth, so views can't drift from each other.
func (s *Store) filterBooks(keep func(*model.Book) bool) []model.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Book, 0)
	for _, id := range s.bookOrder {
		if b := s.books[id]; keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}
