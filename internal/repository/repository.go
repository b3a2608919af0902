// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in sub-packages (sqlite/).
package repository

import (
	"context"

	"github.com/sakif/bookshelf/internal/model"
)

// MaxMessages caps how many messages a single listing returns.
const MaxMessages = 100

// BookFilter narrows a public book listing. Empty fields match everything.
type BookFilter struct {
	// Query matches title or author, case-insensitively, as a substring.
	Query string
	// Genre matches the genre exactly, ignoring case.
	Genre string
}

type BookRepository interface {
	CreateBook(ctx context.Context, book *model.Book) error
	GetBook(ctx context.Context, id string) (*model.Book, error)
	ListPublicBooks(ctx context.Context, filter BookFilter) ([]model.Book, error)
	ListBooksByOwner(ctx context.Context, ownerID string) ([]model.Book, error)
	ListBooksSharedWith(ctx context.Context, userID string) ([]model.Book, error)
	UpdateBook(ctx context.Context, book *model.Book) error
	// DeleteBook removes the book and its share grants atomically. Deleting
	// an absent book is not an error.
	DeleteBook(ctx context.Context, id string) error
	ShareBook(ctx context.Context, bookID, userID string) error
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessagesForUser(ctx context.Context, userID string, limit int) ([]model.Message, error)
	// ListChats returns one entry per conversation partner of userID, most
	// recently active first.
	ListChats(ctx context.Context, userID string) ([]model.Chat, error)
	MarkMessageRead(ctx context.Context, id string) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGitHubUser creates the user on first GitHub sign-in and refreshes
	// the profile on later ones, keeping the internal id stable.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)
}
