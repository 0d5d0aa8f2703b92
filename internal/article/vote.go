package article

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the signed delta a vote applies to an article's vote count.
type Direction int

const (
	Upvote   Direction = 1
	Downvote Direction = -1
)

func (d Direction) String() string {
	if d == Downvote {
		return "down"
	}
	return "up"
}

// ParseDirection accepts "up"/"down" (and "upvote"/"downvote").
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "upvote", "+1", "1":
		return Upvote, nil
	case "down", "downvote", "-1":
		return Downvote, nil
	default:
		return 0, fmt.Errorf("unknown vote direction %q", s)
	}
}

// Vote records that a session voted on an article. At most one exists per
// (ArticleID, SessionID).
type Vote struct {
	ArticleID string    `json:"article_id"`
	SessionID string    `json:"session_id"`
	Direction Direction `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}
