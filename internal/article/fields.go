package article

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	maxTitleLength     = 1024
	maxBodyLength      = 1 << 20
	maxPermalinkLength = 255
	maxKeywordsLength  = 2048
	maxEditReason      = 1024
)

var permalinkPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._~-]*$`)

// Fields is the author-editable part of an article, as submitted on create,
// save and suggestion.
type Fields struct {
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	Permalink    string       `json:"permalink"`
	Keywords     string       `json:"keywords"`
	Published    bool         `json:"published"`
	VisibleState VisibleState `json:"visible_state"`
	Password     string       `json:"password"`
	Featured     bool         `json:"featured"`
	EditReason   string       `json:"edit_reason"`
}

// Normalize trims free-text fields and defaults the visibility.
func (f *Fields) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Permalink = strings.TrimSpace(f.Permalink)
	f.Keywords = strings.TrimSpace(f.Keywords)
	f.EditReason = strings.TrimSpace(f.EditReason)
	if f.VisibleState == "" {
		f.VisibleState = Public
	}
}

// Validate checks lengths and formats, returning validation.Errors keyed by
// JSON field name.
func (f Fields) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Title, validation.Required, validation.Length(1, maxTitleLength)),
		validation.Field(&f.Body, validation.Length(0, maxBodyLength)),
		validation.Field(&f.Permalink,
			validation.Length(0, maxPermalinkLength),
			validation.Match(permalinkPattern).Error("must contain only letters, digits and . _ ~ -"),
		),
		validation.Field(&f.Keywords, validation.Length(0, maxKeywordsLength)),
		validation.Field(&f.VisibleState, validation.In(Public, Private)),
		validation.Field(&f.EditReason, validation.Length(0, maxEditReason)),
	)
}
