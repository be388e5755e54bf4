// AngelaMos | 2026
// repository.go

package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trailnetzero/community-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, resource *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	GetBySlug(ctx context.Context, slug string) (*Resource, error)
	Update(ctx context.Context, resource *Resource) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
	List(
		ctx context.Context,
		params ListResourcesParams,
	) ([]Resource, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const resourceColumns = `id, kind, slug, title, summary, body, url,
	       author_id, published, published_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, resource *Resource) error {
	query := `
		INSERT INTO member_resources (id, kind, slug, title, summary, body, url, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, resource, query,
		resource.ID,
		resource.Kind,
		resource.Slug,
		resource.Title,
		resource.Summary,
		resource.Body,
		resource.URL,
		resource.AuthorID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create resource: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create resource: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Resource, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM member_resources
		WHERE id = $1`, resourceColumns)

	var resource Resource
	err := r.db.GetContext(ctx, &resource, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get resource: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}

	return &resource, nil
}

func (r *repository) GetBySlug(
	ctx context.Context,
	slug string,
) (*Resource, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM member_resources
		WHERE slug = $1`, resourceColumns)

	var resource Resource
	err := r.db.GetContext(ctx, &resource, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get resource by slug: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource by slug: %w", err)
	}

	return &resource, nil
}

func (r *repository) Update(ctx context.Context, resource *Resource) error {
	query := `
		UPDATE member_resources
		SET title = $2, summary = $3, body = $4, url = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		resource.ID,
		resource.Title,
		resource.Summary,
		resource.Body,
		resource.URL,
	)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update resource: %w", core.ErrNotFound)
	}

	return nil
}

// SetPublished stamps published_at on the first publish only, so
// re-publishing keeps the original date.
func (r *repository) SetPublished(
	ctx context.Context,
	id string,
	published bool,
) error {
	query := `
		UPDATE member_resources
		SET published = $2,
		    published_at = CASE
		        WHEN $2 THEN COALESCE(published_at, NOW())
		        ELSE published_at
		    END,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, published)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set published: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(
		ctx, `DELETE FROM member_resources WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete resource: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListResourcesParams,
) ([]Resource, int, error) {
	params.Normalize()

	conditions := "1 = 1"
	args := []any{}
	argIdx := 1

	if params.PublishedOnly {
		conditions += " AND published = TRUE"
	}

	if params.Kind != "" {
		conditions += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, params.Kind)
		argIdx++
	}

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM member_resources WHERE %s",
		conditions,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM member_resources
		WHERE %s
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT $%d OFFSET $%d`,
		resourceColumns, conditions, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var resources []Resource
	if err := r.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	return resources, total, nil
}
