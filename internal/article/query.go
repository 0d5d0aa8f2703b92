package article

import (
	"fmt"
	"strings"
	"time"
)

// Filter is a structured predicate over articles. Zero-valued fields place
// no constraint. IDs distinguishes nil (unconstrained) from empty (matches
// nothing).
type Filter struct {
	ID                  string
	IDs                 []string
	ExcludeID           string
	IDOrPermalink       string
	Permalink           string
	ParentID            string
	Published           *bool
	Featured            *bool
	Versioned           *bool
	VisibleState        VisibleState
	ExcludeVisibleState VisibleState
	// TitleContains is a case-insensitive substring match.
	TitleContains string
}

// Bool returns a pointer for use in Filter and Patch literals.
func Bool(b bool) *bool { return &b }

// Live matches non-snapshot articles.
func Live() Filter {
	return Filter{Versioned: Bool(false)}
}

// Match evaluates the filter against a. Store backends that cannot push a
// predicate down fall back to this.
func (f Filter) Match(a *Article) bool {
	if f.ID != "" && a.ID != f.ID {
		return false
	}
	if f.IDs != nil && !contains(f.IDs, a.ID) {
		return false
	}
	if f.ExcludeID != "" && a.ID == f.ExcludeID {
		return false
	}
	if f.IDOrPermalink != "" && a.ID != f.IDOrPermalink && a.Permalink != f.IDOrPermalink {
		return false
	}
	if f.Permalink != "" && a.Permalink != f.Permalink {
		return false
	}
	if f.ParentID != "" && a.ParentID != f.ParentID {
		return false
	}
	if f.Published != nil && a.Published != *f.Published {
		return false
	}
	if f.Featured != nil && a.Featured != *f.Featured {
		return false
	}
	if f.Versioned != nil && a.Versioned != *f.Versioned {
		return false
	}
	if f.VisibleState != "" && a.VisibleState != f.VisibleState {
		return false
	}
	if f.ExcludeVisibleState != "" && a.VisibleState == f.ExcludeVisibleState {
		return false
	}
	if f.TitleContains != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(f.TitleContains)) {
		return false
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// SortField names a sortable article column.
type SortField string

const (
	SortViewCount     SortField = "view_count"
	SortVoteCount     SortField = "vote_count"
	SortPublishedDate SortField = "published_date"
	SortLastUpdated   SortField = "last_updated"
	SortTitle         SortField = "title"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort orders query results. The zero Sort keeps insertion order.
type Sort struct {
	Field SortField `json:"field"`
	Order Order     `json:"order"`
}

// ParseSort validates a field/order pair. Both "desc"/"-1" and "asc"/"1"
// spellings are accepted for the order.
func ParseSort(field, order string) (Sort, error) {
	s := Sort{Field: SortField(strings.ToLower(strings.TrimSpace(field)))}
	switch s.Field {
	case SortViewCount, SortVoteCount, SortPublishedDate, SortLastUpdated, SortTitle:
	default:
		return Sort{}, fmt.Errorf("unsupported sort field %q", field)
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "desc", "-1":
		s.Order = Desc
	case "asc", "1":
		s.Order = Asc
	default:
		return Sort{}, fmt.Errorf("unsupported sort order %q", order)
	}
	return s, nil
}

// IsZero reports whether no ordering was requested.
func (s Sort) IsZero() bool {
	return s.Field == ""
}

// Compare returns -1, 0 or 1 as a sorts before, with, or after b.
func (s Sort) Compare(a, b *Article) int {
	var c int
	switch s.Field {
	case SortViewCount:
		c = cmpInt(a.ViewCount, b.ViewCount)
	case SortVoteCount:
		c = cmpInt(a.VoteCount, b.VoteCount)
	case SortPublishedDate:
		c = a.PublishedDate.Compare(b.PublishedDate)
	case SortLastUpdated:
		c = a.LastUpdated.Compare(b.LastUpdated)
	case SortTitle:
		c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	}
	if s.Order == Desc {
		c = -c
	}
	return c
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Patch lists the fields an update sets. Nil fields are left unchanged.
type Patch struct {
	Title          *string
	Body           *string
	Permalink      *string
	Keywords       *string
	Published      *bool
	Featured       *bool
	VisibleState   *VisibleState
	Password       *string
	ViewCount      *int64
	VoteCount      *int64
	Author         *string
	AuthorEmail    *string
	PublishedDate  *time.Time
	LastUpdated    *time.Time
	LastUpdateUser *string
}

// Apply writes the set fields onto a.
func (p Patch) Apply(a *Article) {
	setString(&a.Title, p.Title)
	setString(&a.Body, p.Body)
	setString(&a.Permalink, p.Permalink)
	setString(&a.Keywords, p.Keywords)
	setString(&a.Password, p.Password)
	setString(&a.Author, p.Author)
	setString(&a.AuthorEmail, p.AuthorEmail)
	setString(&a.LastUpdateUser, p.LastUpdateUser)
	if p.Published != nil {
		a.Published = *p.Published
	}
	if p.Featured != nil {
		a.Featured = *p.Featured
	}
	if p.VisibleState != nil {
		a.VisibleState = *p.VisibleState
	}
	if p.ViewCount != nil {
		a.ViewCount = *p.ViewCount
	}
	if p.VoteCount != nil {
		a.VoteCount = *p.VoteCount
	}
	if p.PublishedDate != nil {
		a.PublishedDate = *p.PublishedDate
	}
	if p.LastUpdated != nil {
		a.LastUpdated = *p.LastUpdated
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
