package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smartlink/smartlink/internal/model"
)

// Common errors for link repository operations.
var (
	ErrLinkNotFound  = errors.New("link not found")
	ErrAliasExists   = errors.New("alias already exists")
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// LinkFilter defines filters for listing links.
type LinkFilter struct {
	Enabled       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

const linkColumns = `id, short_code, target_url, safe_url, title, description,
	use_js_challenge, direct_from_tiktok, enabled, deleted_at, click_count, created_at, updated_at`

// CreateLink inserts a new link into the database.
func (r *Repository) CreateLink(ctx context.Context, link *model.Link) error {
	query := `
		INSERT INTO links (id, short_code, target_url, safe_url, title, description,
			use_js_challenge, direct_from_tiktok, enabled, click_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.ShortCode,
		link.TargetURL,
		nullableString(link.SafeURL),
		link.Title,
		nullableString(link.Description),
		link.UseJSChallenge,
		link.DirectFromTikTok,
		link.Enabled,
		link.ClickCount,
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAliasExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetLinkByID retrieves a link by its ID.
func (r *Repository) GetLinkByID(ctx context.Context, id string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1 AND deleted_at IS NULL`

	link, err := scanLink(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by ID: %w", err)
	}

	return link, nil
}

// GetLinkByShortCode retrieves a link by its short code.
// This is the hot path for redirects on a cache miss.
func (r *Repository) GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1 AND deleted_at IS NULL`

	link, err := scanLink(r.pool.QueryRow(ctx, query, shortCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by short code: %w", err)
	}

	return link, nil
}

// ListLinks retrieves a page of links, newest first.
func (r *Repository) ListLinks(ctx context.Context, filter LinkFilter, cursor string, limit int) ([]*model.Link, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `SELECT ` + linkColumns + ` FROM links WHERE deleted_at IS NULL`
	args := []any{}
	argIndex := 1

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	if filter.Enabled != nil {
		query += fmt.Sprintf(" AND enabled = $%d", argIndex)
		args = append(args, *filter.Enabled)
		argIndex++
	}

	if filter.CreatedAfter != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	if filter.CreatedBefore != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *filter.CreatedBefore)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // one extra row tells us whether there is a next page

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*model.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating links: %w", err)
	}

	var nextCursor string
	if len(links) > limit {
		links = links[:limit]
		last := links[len(links)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, CreatedAt: last.CreatedAt})
	}

	return links, nextCursor, nil
}

// UpdateLink updates a link's mutable fields.
func (r *Repository) UpdateLink(ctx context.Context, link *model.Link) error {
	query := `
		UPDATE links
		SET target_url = $2, safe_url = $3, title = $4, description = $5,
			use_js_challenge = $6, direct_from_tiktok = $7, enabled = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query,
		link.ID,
		link.TargetURL,
		nullableString(link.SafeURL),
		link.Title,
		nullableString(link.Description),
		link.UseJSChallenge,
		link.DirectFromTikTok,
		link.Enabled,
		link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// DeleteLink performs a soft delete on a link.
func (r *Repository) DeleteLink(ctx context.Context, id string) error {
	query := `UPDATE links SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// ShortCodeExists checks if a short code is taken, including by deleted links.
func (r *Repository) ShortCodeExists(ctx context.Context, shortCode string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, shortCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check short code existence: %w", err)
	}

	return exists, nil
}

// CountLinks returns the number of live links.
func (r *Repository) CountLinks(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM links WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return n, nil
}

// scanLink scans a single row into a Link model.
func scanLink(row pgx.Row) (*model.Link, error) {
	var (
		link        model.Link
		safeURL     *string
		description *string
	)
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.TargetURL,
		&safeURL,
		&link.Title,
		&description,
		&link.UseJSChallenge,
		&link.DirectFromTikTok,
		&link.Enabled,
		&link.DeletedAt,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if safeURL != nil {
		link.SafeURL = *safeURL
	}
	if description != nil {
		link.Description = *description
	}
	return &link, nil
}

// nullableString returns nil for empty strings.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// encodeCursor encodes pagination cursor to base64.
func encodeCursor(cursor *PaginationCursor) string {
	data, _ := json.Marshal(cursor)
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor decodes base64 pagination cursor.
func decodeCursor(s string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	var cursor PaginationCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, err
	}
	if cursor.ID == "" {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}
