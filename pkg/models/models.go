package models

import "time"

// User represents a registered account
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose the hash to clients
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Settings is the playback settings blob stored with each composition
type Settings struct {
	Tempo    int    `json:"tempo"`    // beats per minute
	WaveType string `json:"waveType"` // sine, square, sawtooth or triangle
}

// Composition represents an ordered list of equations plus playback settings
type Composition struct {
	ID           int       `json:"id"`
	OwnerID      int       `json:"ownerId"`
	OwnerName    string    `json:"ownerName,omitempty"` // joined from users
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Equations    []string  `json:"equations"`
	Settings     Settings  `json:"settings"`
	Public       bool      `json:"public"`
	PlayCount    int       `json:"playCount"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	Liked        bool      `json:"liked"` // whether the requesting user liked it
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Comment represents a comment left on a composition
type Comment struct {
	ID            int       `json:"id"`
	CompositionID int       `json:"compositionId"`
	AuthorID      int       `json:"authorId"`
	AuthorName    string    `json:"authorName,omitempty"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
}

// GalleryPage is one page of the public feed plus pagination bookkeeping
type GalleryPage struct {
	Compositions []Composition `json:"compositions"`
	Total        int           `json:"total"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
	Sort         string        `json:"sort"`
}

// RenderJob tracks one asynchronous WAV render of a composition
type RenderJob struct {
	ID            string     `json:"id"`
	UserID        int        `json:"-"`
	CompositionID int        `json:"compositionId"`
	Title         string     `json:"title"`
	Loops         int        `json:"loops"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	Error         string     `json:"error,omitempty"`
	OutputPath    string     `json:"-"` // server-side path, never exposed
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// CompositionFile is the on-disk document format used by the import
// watcher and the CLI player. It carries no server-assigned fields.
type CompositionFile struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Equations   []string `json:"equations"`
	Settings    Settings `json:"settings"`
	Public      bool     `json:"public,omitempty"`
}
