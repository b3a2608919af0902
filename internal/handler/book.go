package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
	"github.com/sakif/bookshelf/internal/service"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to temp files.
const multipartMemory = 8 << 20

// BookHandler serves the book catalog, share grants and book files.
type BookHandler struct {
	books     *service.BookService
	maxUpload int64
	logger    *slog.Logger
}

func NewBookHandler(books *service.BookService, maxUpload int64, logger *slog.Logger) *BookHandler {
	if maxUpload <= 0 {
		maxUpload = service.DefaultMaxUpload
	}
	return &BookHandler{books: books, maxUpload: maxUpload, logger: logger}
}

// HandleList returns public books, newest first. ?q= matches title or
// author and ?genre= matches the genre, both ignoring case.
//
// HTTP: GET /api/books?q=&genre=
func (h *BookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	books, err := h.books.ListPublic(r.Context(), repository.BookFilter{
		Query: query.Get("q"),
		Genre: query.Get("genre"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// HandleListMine returns every book the signed-in caller uploaded, private
// ones included.
//
// HTTP: GET /api/books/mine
func (h *BookHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	books, err := h.books.ListByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// HandleListShared returns the books shared with ?userId=.
//
// HTTP: GET /api/books/shared?userId=
func (h *BookHandler) HandleListShared(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.ListSharedWith(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// HandleCreate stores a new book. A signed-in caller's book is always
// attributed to them; naming another uploader is forbidden.
//
// HTTP: POST /api/books
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.Book
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	uploader, err := actingAs(r, in.UploadedBy, "uploaded_by")
	if err != nil {
		writeError(w, err)
		return
	}
	in.UploadedBy = uploader

	book, err := h.books.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// HTTP: GET /api/books/{id}
func (h *BookHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	book, err := h.books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleUpdate merges the supplied fields into a book.
//
// HTTP: PUT /api/books/{id}
func (h *BookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.BookPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	book, err := h.books.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleDelete removes a book and all its share grants. It answers
// {"success": true} whether or not the book existed.
//
// HTTP: DELETE /api/books/{id}
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.books.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

type shareRequest struct {
	BookID string `json:"bookId"`
	UserID string `json:"userId"`
}

// HandleShare grants a user access to a book. Repeating a grant is harmless.
//
// HTTP: POST /api/share
func (h *BookHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.books.Share(r.Context(), req.BookID, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, success)
}

// HandleUploadFile stores the multipart "file" field as the book's file.
//
// HTTP: POST /api/books/{id}/file
func (h *BookHandler) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperror.ValidationFailed("file",
				fmt.Sprintf("file must be %d bytes or less", h.maxUpload)))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "multipart form with a file field is required"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "file is required"))
		return
	}
	defer file.Close()

	book, err := h.books.UploadFile(r.Context(), chi.URLParam(r, "id"), service.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleDownloadFile redirects to a short-lived download URL.
//
// HTTP: GET /api/books/{id}/file
func (h *BookHandler) HandleDownloadFile(w http.ResponseWriter, r *http.Request) {
	url, err := h.books.FileURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
