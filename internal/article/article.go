// Package article defines the knowledge base domain model: articles, their
// version snapshots, votes, and the identity of the caller acting on them.
package article

import (
	"strings"
	"time"
)

// VisibleState controls who may read a published article.
type VisibleState string

const (
	Public  VisibleState = "public"
	Private VisibleState = "private"
)

// Article is the authoritative record held by the document store. Version
// snapshots are Articles with Versioned set and ParentID pointing at the
// live article they were taken from.
type Article struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Body           string       `json:"body"`
	Permalink      string       `json:"permalink,omitempty"`
	Keywords       string       `json:"keywords,omitempty"`
	Published      bool         `json:"published"`
	VisibleState   VisibleState `json:"visible_state"`
	Password       string       `json:"-"`
	Featured       bool         `json:"featured"`
	ViewCount      int64        `json:"view_count"`
	VoteCount      int64        `json:"vote_count"`
	Author         string       `json:"author,omitempty"`
	AuthorEmail    string       `json:"author_email,omitempty"`
	PublishedDate  time.Time    `json:"published_date"`
	LastUpdated    time.Time    `json:"last_updated"`
	LastUpdateUser string       `json:"last_update_user,omitempty"`
	Versioned      bool         `json:"versioned,omitempty"`
	ParentID       string       `json:"parent_id,omitempty"`
	EditReason     string       `json:"edit_reason,omitempty"`
}

// Clone returns a copy that shares no mutable state with a.
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Draft is the editor's view of an article. It carries the password, which
// the reader-facing JSON of Article never does, so a form filled from a
// Draft and saved back keeps the protection.
type Draft struct {
	*Article
	Password string `json:"password"`
}

// ForEditor wraps a as a Draft.
func (a *Article) ForEditor() Draft {
	return Draft{Article: a, Password: a.Password}
}

// Protected reports whether reading the article requires a password.
func (a *Article) Protected() bool {
	return a.Password != ""
}

// IsPrivate reports whether only signed-in users may read the article.
func (a *Article) IsPrivate() bool {
	return a.VisibleState == Private
}

// Path is the public address of the article: its permalink when set,
// otherwise its ID.
func (a *Article) Path() string {
	if a.Permalink != "" {
		return a.Permalink
	}
	return a.ID
}

// Summary is the listing-sized view of an article used in search results
// and listings.
type Summary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Permalink     string    `json:"permalink,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	Published     bool      `json:"published"`
	Featured      bool      `json:"featured"`
	ViewCount     int64     `json:"view_count"`
	VoteCount     int64     `json:"vote_count"`
	PublishedDate time.Time `json:"published_date"`
	LastUpdated   time.Time `json:"last_updated"`
	Score         float64   `json:"score,omitempty"`
}

// Summarize builds a Summary; score is zero outside search results.
func Summarize(a *Article, score float64) Summary {
	return Summary{
		ID:            a.ID,
		Title:         a.Title,
		Permalink:     a.Permalink,
		Keywords:      splitKeywords(a.Keywords),
		Published:     a.Published,
		Featured:      a.Featured,
		ViewCount:     a.ViewCount,
		VoteCount:     a.VoteCount,
		PublishedDate: a.PublishedDate,
		LastUpdated:   a.LastUpdated,
		Score:         score,
	}
}

func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Identity is the caller acting on the knowledge base. An empty Email means
// an anonymous visitor; SessionID is set for every caller.
type Identity struct {
	Name      string
	Email     string
	IsAdmin   bool
	SessionID string
}

// Authenticated reports whether the caller is a signed-in author.
func (i Identity) Authenticated() bool {
	return i.Email != ""
}

// Anonymous returns an unauthenticated identity bound to a session.
func Anonymous(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}
