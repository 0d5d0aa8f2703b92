package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/article"
	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const articleColumns = `id, title, body, permalink, keywords, published, visible_state, password,
	featured, view_count, vote_count, author, author_email, published_date, last_updated,
	last_update_user, versioned, parent_id, edit_reason`

var sortColumns = map[article.SortField]string{
	article.SortViewCount:     "view_count",
	article.SortVoteCount:     "vote_count",
	article.SortPublishedDate: "published_date",
	article.SortLastUpdated:   "last_updated",
	article.SortTitle:         "LOWER(title)",
}

// Postgres is the Store backed by the articles and votes tables.
type Postgres struct {
	db *postgres.Client
}

func NewPostgres(db *postgres.Client) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

// where renders f as a SQL predicate with positional arguments.
func where(f article.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}
	if f.ID != "" {
		add("id = $%d", f.ID)
	}
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			conds = append(conds, "FALSE")
		} else {
			add("id = ANY($%d)", pq.Array(f.IDs))
		}
	}
	if f.ExcludeID != "" {
		add("id <> $%d", f.ExcludeID)
	}
	if f.IDOrPermalink != "" {
		add("(id = $%d OR permalink = $%[1]d)", f.IDOrPermalink)
	}
	if f.Permalink != "" {
		add("permalink = $%d", f.Permalink)
	}
	if f.ParentID != "" {
		add("parent_id = $%d", f.ParentID)
	}
	if f.Published != nil {
		add("published = $%d", *f.Published)
	}
	if f.Featured != nil {
		add("featured = $%d", *f.Featured)
	}
	if f.Versioned != nil {
		add("versioned = $%d", *f.Versioned)
	}
	if f.VisibleState != "" {
		add("visible_state = $%d", string(f.VisibleState))
	}
	if f.ExcludeVisibleState != "" {
		add("visible_state <> $%d", string(f.ExcludeVisibleState))
	}
	if f.TitleContains != "" {
		add(`title ILIKE $%d ESCAPE '\'`, "%"+escapeLike(f.TitleContains)+"%")
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderBy(s article.Sort) string {
	col, ok := sortColumns[s.Field]
	if !ok {
		return "seq ASC"
	}
	dir := "ASC"
	if s.Order == article.Desc {
		dir = "DESC"
	}
	return col + " " + dir + ", seq ASC"
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (*article.Article, error) {
	var a article.Article
	var visible string
	err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Permalink, &a.Keywords, &a.Published, &visible,
		&a.Password, &a.Featured, &a.ViewCount, &a.VoteCount, &a.Author, &a.AuthorEmail,
		&a.PublishedDate, &a.LastUpdated, &a.LastUpdateUser, &a.Versioned, &a.ParentID, &a.EditReason)
	if err != nil {
		return nil, err
	}
	a.VisibleState = article.VisibleState(visible)
	return &a, nil
}

func (p *Postgres) FindOne(ctx context.Context, f article.Filter) (*article.Article, error) {
	cond, args := where(f)
	row := p.db.DB.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE `+cond+` ORDER BY seq ASC LIMIT 1`, args...)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, failure("finding article", err)
	}
	return a, nil
}

func (p *Postgres) Query(ctx context.Context, f article.Filter, s article.Sort, limit int) ([]*article.Article, error) {
	cond, args := where(f)
	q := `SELECT ` + articleColumns + ` FROM articles WHERE ` + cond + ` ORDER BY ` + orderBy(s)
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := p.db.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, failure("querying articles", err)
	}
	defer rows.Close()

	out := make([]*article.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, failure("scanning article row", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, failure("iterating article rows", err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context, f article.Filter) (int64, error) {
	cond, args := where(f)
	var n int64
	if err := p.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE `+cond, args...).Scan(&n); err != nil {
		return 0, failure("counting articles", err)
	}
	return n, nil
}

func (p *Postgres) Insert(ctx context.Context, a *article.Article) (string, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := p.db.DB.ExecContext(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		id, a.Title, a.Body, a.Permalink, a.Keywords, a.Published, string(a.VisibleState), a.Password,
		a.Featured, a.ViewCount, a.VoteCount, a.Author, a.AuthorEmail, a.PublishedDate, a.LastUpdated,
		a.LastUpdateUser, a.Versioned, a.ParentID, a.EditReason,
	)
	if postgres.IsUniqueViolation(err) && a.Permalink != "" && !a.Versioned {
		return "", apperrors.ErrDuplicatePermalink
	}
	if err != nil {
		return "", failure("inserting article", err)
	}
	return id, nil
}

func (p *Postgres) Update(ctx context.Context, f article.Filter, patch article.Patch) (int64, error) {
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Body != nil {
		set("body", *patch.Body)
	}
	if patch.Permalink != nil {
		set("permalink", *patch.Permalink)
	}
	if patch.Keywords != nil {
		set("keywords", *patch.Keywords)
	}
	if patch.Published != nil {
		set("published", *patch.Published)
	}
	if patch.Featured != nil {
		set("featured", *patch.Featured)
	}
	if patch.VisibleState != nil {
		set("visible_state", string(*patch.VisibleState))
	}
	if patch.Password != nil {
		set("password", *patch.Password)
	}
	if patch.ViewCount != nil {
		set("view_count", *patch.ViewCount)
	}
	if patch.VoteCount != nil {
		set("vote_count", *patch.VoteCount)
	}
	if patch.Author != nil {
		set("author", *patch.Author)
	}
	if patch.AuthorEmail != nil {
		set("author_email", *patch.AuthorEmail)
	}
	if patch.PublishedDate != nil {
		set("published_date", *patch.PublishedDate)
	}
	if patch.LastUpdated != nil {
		set("last_updated", *patch.LastUpdated)
	}
	if patch.LastUpdateUser != nil {
		set("last_update_user", *patch.LastUpdateUser)
	}
	if len(sets) == 0 {
		return p.Count(ctx, f)
	}

	cond, condArgs := where(f)
	// Shift the filter placeholders past the SET arguments.
	cond = renumber(cond, len(args))
	args = append(args, condArgs...)

	res, err := p.db.DB.ExecContext(ctx, `UPDATE articles SET `+strings.Join(sets, ", ")+` WHERE `+cond, args...)
	if postgres.IsUniqueViolation(err) {
		return 0, apperrors.ErrDuplicatePermalink
	}
	if err != nil {
		return 0, failure("updating articles", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, failure("reading affected rows", err)
	}
	return n, nil
}

// renumber adds offset to every $n placeholder in a rendered predicate.
func renumber(cond string, offset int) string {
	if offset == 0 {
		return cond
	}
	var b strings.Builder
	for i := 0; i < len(cond); i++ {
		if cond[i] != '$' {
			b.WriteByte(cond[i])
			continue
		}
		j := i + 1
		n := 0
		for j < len(cond) && cond[j] >= '0' && cond[j] <= '9' {
			n = n*10 + int(cond[j]-'0')
			j++
		}
		if j == i+1 {
			b.WriteByte('$')
			continue
		}
		fmt.Fprintf(&b, "$%d", n+offset)
		i = j - 1
	}
	return b.String()
}

func (p *Postgres) Remove(ctx context.Context, f article.Filter) (int64, error) {
	cond, args := where(f)
	res, err := p.db.DB.ExecContext(ctx, `DELETE FROM articles WHERE `+cond, args...)
	if err != nil {
		return 0, failure("removing articles", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, failure("reading affected rows", err)
	}
	return n, nil
}

func (p *Postgres) IncrementViewCount(ctx context.Context, id string) error {
	res, err := p.db.DB.ExecContext(ctx, `UPDATE articles SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return failure("incrementing view count", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// RecordVote relies on the (article_id, session_id) primary key: the count
// only moves when the vote row was actually inserted.
func (p *Postgres) RecordVote(ctx context.Context, v article.Vote) error {
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		var live bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM articles WHERE id = $1 AND NOT versioned)`, v.ArticleID,
		).Scan(&live)
		if err != nil {
			return err
		}
		if !live {
			return apperrors.ErrNotFound
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO votes (article_id, session_id, direction, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (article_id, session_id) DO NOTHING`,
			v.ArticleID, v.SessionID, int(v.Direction), createdAt,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperrors.ErrAlreadyVoted
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE articles SET vote_count = vote_count + $2 WHERE id = $1`,
			v.ArticleID, int(v.Direction),
		)
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrAlreadyVoted):
		return err
	default:
		return failure("recording vote", err)
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
