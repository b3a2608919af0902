package model

import "time"

// Book is a catalog entry.
//
// SharedWith lists the users granted read access beyond the owner
// (UploadedBy); an id appears in it at most once. FileKey is the object key
// in the blob store and stays server-side.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	CoverURL    string    `json:"cover_url,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Genre       string    `json:"genre"`
	Pages       *int      `json:"pages,omitempty"`
	Language    string    `json:"language"`
	SharedWith  []string  `json:"shared_with"`
	IsPublic    bool      `json:"is_public"`

	FileKey string `json:"-"`
}

// Clone returns a deep copy of the book.
func (b Book) Clone() Book {
	b.SharedWith = cloneIDs(b.SharedWith)
	if b.Pages != nil {
		p := *b.Pages
		b.Pages = &p
	}
	return b
}

// SharedWithUser reports whether userID holds a sharing grant.
func (b Book) SharedWithUser(userID string) bool {
	for _, id := range b.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// BookPatch is a partial update: nil fields are left untouched, a pointer
// to "" clears the field.
type BookPatch struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty"`
	FileURL     *string `json:"file_url,omitempty"`
	Genre       *string `json:"genre,omitempty"`
	Pages       *int    `json:"pages,omitempty"`
	Language    *string `json:"language,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// Apply merges the supplied fields into b.
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.CoverURL != nil {
		b.CoverURL = *p.CoverURL
	}
	if p.FileURL != nil {
		b.FileURL = *p.FileURL
	}
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	if p.Pages != nil {
		pages := *p.Pages
		b.Pages = &pages
	}
	if p.Language != nil {
		b.Language = *p.Language
	}
	if p.IsPublic != nil {
		b.IsPublic = *p.IsPublic
	}
}
