// AngelaMos | 2026
// repository.go

package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/trailnetzero/community-api/internal/core"
)

type Repository interface {
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, category *Category) error
	DeleteCategory(ctx context.Context, id string) error

	CreateThreadWithFirstPost(
		ctx context.Context,
		thread *Thread,
		post *Post,
	) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(
		ctx context.Context,
		params ListThreadsParams,
	) ([]Thread, int, error)
	SetPinned(ctx context.Context, id string, value bool) error
	SetLocked(ctx context.Context, id string, value bool) error
	SetArchived(ctx context.Context, id string, value bool) error
	SetDeleted(ctx context.Context, id string, value bool) error
	PermanentlyDeleteThread(ctx context.Context, id string) error

	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id int64) (*Post, error)
	SetPostDeleted(
		ctx context.Context,
		id int64,
		adminID string,
		value bool,
	) error
	ListPosts(ctx context.Context, params ListPostsParams) ([]Post, int, error)
	ListPostsAfter(
		ctx context.Context,
		threadID string,
		afterID int64,
		limit int,
		includeDeleted bool,
	) ([]Post, error)

	CreateFlag(ctx context.Context, flag *Flag) error
	GetFlag(ctx context.Context, id string) (*Flag, error)
	ListFlags(
		ctx context.Context,
		includeResolved bool,
		page, pageSize int,
	) ([]FlagWithContext, int, error)
	ResolveFlag(ctx context.Context, id, adminID string) error
	CountOpenFlags(ctx context.Context) (int, error)
}

// repository holds the *sqlx.DB directly, not a DBTX, because thread and
// post writes need multi-statement transactions.
type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const threadColumns = `id, category_id, author_id, title, pinned, locked,
	       archived, archived_at, deleted, deleted_at, post_count,
	       last_post_at, created_at, updated_at`

const postColumns = `id, thread_id, author_id, body, deleted, deleted_at,
	       deleted_by, created_at`

func (r *repository) CreateCategory(
	ctx context.Context,
	category *Category,
) error {
	query := `
		INSERT INTO categories (id, slug, name, description, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, category, query,
		category.ID,
		category.Slug,
		category.Name,
		category.Description,
		category.Position,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create category: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create category: %w", err)
	}

	return nil
}

func (r *repository) GetCategory(
	ctx context.Context,
	id string,
) (*Category, error) {
	query := `
		SELECT id, slug, name, description, position, created_at, updated_at
		FROM categories
		WHERE id = $1`

	var category Category
	err := r.db.GetContext(ctx, &category, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	return &category, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, slug, name, description, position, created_at, updated_at
		FROM categories
		ORDER BY position ASC, name ASC`

	var categories []Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return categories, nil
}

func (r *repository) UpdateCategory(
	ctx context.Context,
	category *Category,
) error {
	query := `
		UPDATE categories
		SET name = $2, description = $3, position = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Description,
		category.Position,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update category: %w", core.ErrNotFound)
	}

	return nil
}

// DeleteCategory refuses to remove a category that still has threads,
// deleted ones included.
func (r *repository) DeleteCategory(ctx context.Context, id string) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var threadCount int
		countQuery := `SELECT COUNT(*) FROM threads WHERE category_id = $1`
		if err := tx.GetContext(ctx, &threadCount, countQuery, id); err != nil {
			return fmt.Errorf("count category threads: %w", err)
		}

		if threadCount > 0 {
			return fmt.Errorf(
				"category has %d threads: %w",
				threadCount,
				core.ErrConflict,
			)
		}

		result, err := tx.ExecContext(
			ctx, `DELETE FROM categories WHERE id = $1`, id,
		)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}

		if rows == 0 {
			return fmt.Errorf("delete category: %w", core.ErrNotFound)
		}

		return nil
	})
}

// CreateThreadWithFirstPost inserts the thread and its opening post in one
// transaction. A thread without a body never becomes visible.
func (r *repository) CreateThreadWithFirstPost(
	ctx context.Context,
	thread *Thread,
	post *Post,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		threadQuery := `
			INSERT INTO threads (id, category_id, author_id, title, post_count, last_post_at)
			VALUES ($1, $2, $3, $4, 1, NOW())
			RETURNING last_post_at, created_at, updated_at`

		if err := tx.GetContext(ctx, thread, threadQuery,
			thread.ID,
			thread.CategoryID,
			thread.AuthorID,
			thread.Title,
		); err != nil {
			if isForeignKeyError(err) {
				return fmt.Errorf("create thread: %w", core.ErrNotFound)
			}
			return fmt.Errorf("create thread: %w", err)
		}
		thread.PostCount = 1

		postQuery := `
			INSERT INTO posts (thread_id, author_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`

		if err := tx.GetContext(ctx, post, postQuery,
			thread.ID,
			post.AuthorID,
			post.Body,
		); err != nil {
			return fmt.Errorf("create first post: %w", err)
		}
		post.ThreadID = thread.ID

		return nil
	})
}

func (r *repository) GetThread(
	ctx context.Context,
	id string,
) (*Thread, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM threads
		WHERE id = $1`, threadColumns)

	var thread Thread
	err := r.db.GetContext(ctx, &thread, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get thread: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}

	return &thread, nil
}

func (r *repository) ListThreads(
	ctx context.Context,
	params ListThreadsParams,
) ([]Thread, int, error) {
	conditions := "1 = 1"
	args := []any{}
	argIdx := 1

	if !params.IncludeDeleted {
		conditions += " AND deleted = FALSE"
	}

	// Archived threads stay directly viewable but are out of the active
	// listing unless asked for.
	if !params.IncludeArchived {
		conditions += " AND archived = FALSE"
	}

	if params.CategoryID != "" {
		conditions += fmt.Sprintf(" AND category_id = $%d", argIdx)
		args = append(args, params.CategoryID)
		argIdx++
	}

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM threads WHERE %s",
		conditions,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM threads
		WHERE %s
		ORDER BY pinned DESC, last_post_at DESC
		LIMIT $%d OFFSET $%d`,
		threadColumns, conditions, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var threads []Thread
	if err := r.db.SelectContext(ctx, &threads, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}

	return threads, total, nil
}

func (r *repository) SetPinned(
	ctx context.Context,
	id string,
	value bool,
) error {
	query := `
		UPDATE threads
		SET pinned = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set pinned", query, id, value)
}

func (r *repository) SetLocked(
	ctx context.Context,
	id string,
	value bool,
) error {
	query := `
		UPDATE threads
		SET locked = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set locked", query, id, value)
}

// SetArchived stamps archived_at on the first transition only, so
// re-archiving keeps the original timestamp.
func (r *repository) SetArchived(
	ctx context.Context,
	id string,
	value bool,
) error {
	query := `
		UPDATE threads
		SET archived = $2,
		    archived_at = CASE
		        WHEN $2 THEN COALESCE(archived_at, NOW())
		        ELSE NULL
		    END,
		    updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set archived", query, id, value)
}

func (r *repository) SetDeleted(
	ctx context.Context,
	id string,
	value bool,
) error {
	query := `
		UPDATE threads
		SET deleted = $2,
		    deleted_at = CASE
		        WHEN $2 THEN COALESCE(deleted_at, NOW())
		        ELSE NULL
		    END,
		    updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set deleted", query, id, value)
}

// PermanentlyDeleteThread removes the thread and everything hanging off
// it. Flags go first, then posts, then the thread row, all in one
// transaction so a crash cannot strand orphans.
func (r *repository) PermanentlyDeleteThread(
	ctx context.Context,
	id string,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		flagQuery := `
			DELETE FROM flags
			WHERE post_id IN (SELECT id FROM posts WHERE thread_id = $1)`
		if _, err := tx.ExecContext(ctx, flagQuery, id); err != nil {
			return fmt.Errorf("delete thread flags: %w", err)
		}

		postQuery := `DELETE FROM posts WHERE thread_id = $1`
		if _, err := tx.ExecContext(ctx, postQuery, id); err != nil {
			return fmt.Errorf("delete thread posts: %w", err)
		}

		result, err := tx.ExecContext(
			ctx, `DELETE FROM threads WHERE id = $1`, id,
		)
		if err != nil {
			return fmt.Errorf("delete thread: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete thread: %w", err)
		}

		if rows == 0 {
			return fmt.Errorf("delete thread: %w", core.ErrNotFound)
		}

		return nil
	})
}

// CreatePost inserts the post and moves the thread's counters in the same
// transaction. GREATEST keeps last_post_at monotonic even when two posts
// commit out of timestamp order.
func (r *repository) CreatePost(ctx context.Context, post *Post) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		postQuery := `
			INSERT INTO posts (thread_id, author_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`

		if err := tx.GetContext(ctx, post, postQuery,
			post.ThreadID,
			post.AuthorID,
			post.Body,
		); err != nil {
			if isForeignKeyError(err) {
				return fmt.Errorf("create post: %w", core.ErrNotFound)
			}
			return fmt.Errorf("create post: %w", err)
		}

		threadQuery := `
			UPDATE threads
			SET post_count = post_count + 1,
			    last_post_at = GREATEST(last_post_at, $2),
			    updated_at = NOW()
			WHERE id = $1`

		if _, err := tx.ExecContext(
			ctx, threadQuery, post.ThreadID, post.CreatedAt,
		); err != nil {
			return fmt.Errorf("update thread counters: %w", err)
		}

		return nil
	})
}

func (r *repository) GetPost(ctx context.Context, id int64) (*Post, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM posts
		WHERE id = $1`, postColumns)

	var post Post
	err := r.db.GetContext(ctx, &post, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get post: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	return &post, nil
}

// SetPostDeleted hides or restores one post. The first hide stamps who and
// when; restoring clears both.
func (r *repository) SetPostDeleted(
	ctx context.Context,
	id int64,
	adminID string,
	value bool,
) error {
	query := `
		UPDATE posts
		SET deleted = $2,
		    deleted_at = CASE
		        WHEN $2 THEN COALESCE(deleted_at, NOW())
		        ELSE NULL
		    END,
		    deleted_by = CASE
		        WHEN $2 THEN COALESCE(deleted_by, $3::uuid)
		        ELSE NULL
		    END
		WHERE id = $1`

	return r.execExpectingRow(ctx, "set post deleted", query, id, value, adminID)
}

func (r *repository) ListPosts(
	ctx context.Context,
	params ListPostsParams,
) ([]Post, int, error) {
	conditions := "thread_id = $1"
	if !params.IncludeDeleted {
		conditions += " AND deleted = FALSE"
	}

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM posts WHERE %s",
		conditions,
	)
	var total int
	if err := r.db.GetContext(
		ctx, &total, countQuery, params.ThreadID,
	); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM posts
		WHERE %s
		ORDER BY id ASC
		LIMIT $2 OFFSET $3`, postColumns, conditions)

	var posts []Post
	if err := r.db.SelectContext(ctx, &posts, query,
		params.ThreadID,
		params.PageSize,
		params.Offset(),
	); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	return posts, total, nil
}

// ListPostsAfter returns posts past a known id, oldest first. This is the
// replay query behind Last-Event-ID on the post stream.
func (r *repository) ListPostsAfter(
	ctx context.Context,
	threadID string,
	afterID int64,
	limit int,
	includeDeleted bool,
) ([]Post, error) {
	conditions := "thread_id = $1 AND id > $2"
	if !includeDeleted {
		conditions += " AND deleted = FALSE"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM posts
		WHERE %s
		ORDER BY id ASC
		LIMIT $3`, postColumns, conditions)

	var posts []Post
	if err := r.db.SelectContext(
		ctx, &posts, query, threadID, afterID, limit,
	); err != nil {
		return nil, fmt.Errorf("list posts after: %w", err)
	}

	return posts, nil
}

func (r *repository) CreateFlag(ctx context.Context, flag *Flag) error {
	query := `
		INSERT INTO flags (id, post_id, reporter_id, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &flag.CreatedAt, query,
		flag.ID,
		flag.PostID,
		flag.ReporterID,
		flag.Reason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create flag: %w", core.ErrDuplicateKey)
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("create flag: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create flag: %w", err)
	}

	return nil
}

func (r *repository) GetFlag(ctx context.Context, id string) (*Flag, error) {
	query := `
		SELECT id, post_id, reporter_id, reason, created_at,
		       resolved_at, resolved_by
		FROM flags
		WHERE id = $1`

	var flag Flag
	err := r.db.GetContext(ctx, &flag, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get flag: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}

	return &flag, nil
}

// ListFlags is the moderator queue: newest reports first, each carrying
// the flagged post's body and its thread so moderators can act without
// chasing ids.
func (r *repository) ListFlags(
	ctx context.Context,
	includeResolved bool,
	page, pageSize int,
) ([]FlagWithContext, int, error) {
	conditions := "1 = 1"
	if !includeResolved {
		conditions = "f.resolved_at IS NULL"
	}

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM flags f WHERE %s",
		conditions,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count flags: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT f.id, f.post_id, f.reporter_id, f.reason, f.created_at,
		       f.resolved_at, f.resolved_by,
		       p.body AS post_body,
		       t.id AS thread_id,
		       t.title AS thread_title
		FROM flags f
		JOIN posts p ON p.id = f.post_id
		JOIN threads t ON t.id = p.thread_id
		WHERE %s
		ORDER BY f.created_at DESC
		LIMIT $1 OFFSET $2`, conditions)

	var flags []FlagWithContext
	if err := r.db.SelectContext(
		ctx, &flags, query, pageSize, (page-1)*pageSize,
	); err != nil {
		return nil, 0, fmt.Errorf("list flags: %w", err)
	}

	return flags, total, nil
}

// ResolveFlag is idempotent: resolving an already resolved flag keeps the
// original resolver and timestamp.
func (r *repository) ResolveFlag(
	ctx context.Context,
	id, adminID string,
) error {
	query := `
		UPDATE flags
		SET resolved_at = COALESCE(resolved_at, NOW()),
		    resolved_by = COALESCE(resolved_by, $2)
		WHERE id = $1`

	return r.execExpectingRow(ctx, "resolve flag", query, id, adminID)
}

func (r *repository) CountOpenFlags(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM flags WHERE resolved_at IS NULL`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count open flags: %w", err)
	}

	return count, nil
}

func (r *repository) execExpectingRow(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
