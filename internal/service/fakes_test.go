package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
	"github.com/sakif/bookshelf/internal/storage"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory stand-ins for the repository and storage interfaces. They keep
// copies so a test cannot reach into stored state through a returned pointer.

var (
	_ repository.BookRepository    = (*fakeBookRepo)(nil)
	_ repository.MessageRepository = (*fakeMessageRepo)(nil)
	_ repository.UserRepository    = (*fakeUserRepo)(nil)
	_ storage.ObjectStore          = (*fakeObjectStore)(nil)
)

type fakeBookRepo struct {
	books  map[string]*model.Book
	order  []string
	nextID int
	now    time.Time

	deleteErr error
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{
		books: make(map[string]*model.Book),
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeBookRepo) CreateBook(_ context.Context, book *model.Book) error {
	f.nextID++
	f.now = f.now.Add(time.Second)
	book.ID = fmt.Sprintf("book-%d", f.nextID)
	book.UploadedAt = f.now
	book.SharedWith = []string{}
	stored := book.Clone()
	f.books[book.ID] = &stored
	f.order = append(f.order, book.ID)
	return nil
}

func (f *fakeBookRepo) GetBook(_ context.Context, id string) (*model.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return nil, apperror.NotFound("book", id)
	}
	out := b.Clone()
	return &out, nil
}

func (f *fakeBookRepo) list(keep func(*model.Book) bool) []model.Book {
	out := make([]model.Book, 0)
	for i := len(f.order) - 1; i >= 0; i-- {
		if b, ok := f.books[f.order[i]]; ok && keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (f *fakeBookRepo) ListPublicBooks(_ context.Context, filter repository.BookFilter) ([]model.Book, error) {
	q := strings.ToLower(filter.Query)
	return f.list(func(b *model.Book) bool {
		if !b.IsPublic {
			return false
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Author), q) {
			return false
		}
		return filter.Genre == "" || strings.EqualFold(b.Genre, filter.Genre)
	}), nil
}

func (f *fakeBookRepo) ListBooksByOwner(_ context.Context, ownerID string) ([]model.Book, error) {
	return f.list(func(b *model.Book) bool { return b.UploadedBy == ownerID }), nil
}

func (f *fakeBookRepo) ListBooksSharedWith(_ context.Context, userID string) ([]model.Book, error) {
	return f.list(func(b *model.Book) bool { return b.SharedWithUser(userID) }), nil
}

func (f *fakeBookRepo) UpdateBook(_ context.Context, book *model.Book) error {
	existing, ok := f.books[book.ID]
	if !ok {
		return apperror.NotFound("book", book.ID)
	}
	stored := book.Clone()
	stored.SharedWith = existing.SharedWith
	stored.UploadedAt = existing.UploadedAt
	f.books[book.ID] = &stored
	return nil
}

func (f *fakeBookRepo) DeleteBook(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.books, id)
	return nil
}

func (f *fakeBookRepo) ShareBook(_ context.Context, bookID, userID string) error {
	b, ok := f.books[bookID]
	if !ok {
		return apperror.NotFound("book", bookID)
	}
	if !b.SharedWithUser(userID) {
		b.SharedWith = append(b.SharedWith, userID)
	}
	return nil
}

type fakeMessageRepo struct {
	msgs   []model.Message
	nextID int
	now    time.Time
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeMessageRepo) CreateMessage(_ context.Context, msg *model.Message) error {
	f.nextID++
	f.now = f.now.Add(time.Second)
	msg.ID = fmt.Sprintf("msg-%d", f.nextID)
	msg.Timestamp = f.now
	msg.Read = false
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeMessageRepo) ListMessagesForUser(_ context.Context, userID string, limit int) ([]model.Message, error) {
	out := make([]model.Message, 0)
	for i := len(f.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.msgs[i]
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) ListChats(_ context.Context, userID string) ([]model.Chat, error) {
	chats := make([]model.Chat, 0)
	index := make(map[string]int)
	for i := len(f.msgs) - 1; i >= 0; i-- {
		m := f.msgs[i]
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		peer := m.ReceiverID
		if m.SenderID != userID {
			peer = m.SenderID
		}
		j, seen := index[peer]
		if !seen {
			j = len(chats)
			index[peer] = j
			chats = append(chats, model.Chat{ParticipantID: peer, LastMessage: &m})
		}
		if m.ReceiverID == userID && !m.Read {
			chats[j].UnreadCount++
		}
	}
	return chats, nil
}

func (f *fakeMessageRepo) MarkMessageRead(_ context.Context, id string) error {
	for i := range f.msgs {
		if f.msgs[i].ID == id {
			f.msgs[i].Read = true
			return nil
		}
	}
	return apperror.NotFound("message", id)
}

type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int
	now    time.Time

	listErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[string]*model.User),
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	user.Email = strings.ToLower(user.Email)
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	f.now = f.now.Add(time.Second)
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = f.now
	stored := user.Clone()
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := u.Clone()
	return &out, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			out := u.Clone()
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == *user.GitHubID {
			u.Username = user.Username
			u.Email = user.Email
			u.Avatar = user.Avatar
			*user = u.Clone()
			return nil
		}
	}
	return f.CreateUser(ctx, user)
}

func (f *fakeUserRepo) ListUsers(context.Context) ([]model.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: got %d want %d", len(data), size)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return "", fmt.Errorf("no such key %s", key)
	}
	return fmt.Sprintf("https://files.example.com/%s?expires=%d", key, int(expiry.Seconds())), nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// minimalPDF builds a structurally valid PDF with the given number of
// blank pages, computing the xref offsets as it goes.
func minimalPDF(t *testing.T, pages int) []byte {
	t.Helper()
	var buf bytes.Buffer
	offsets := []int{0}

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)
	return buf.Bytes()
}
