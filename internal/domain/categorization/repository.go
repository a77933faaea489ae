package categorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/statement-ingest/pkg/db"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrKeywordNotFound  = errors.New("keyword not found")
)

// KeywordStore is the persisted keyword list the service categorizes against
type KeywordStore interface {
	ListActiveKeywords(ctx context.Context) ([]Keyword, error)
}

// Repository handles database operations for categories and keywords
type Repository struct {
	db db.Querier
}

// NewRepository creates a new categorization repository
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// ListActiveKeywords fetches active keywords, highest priority first
func (r *Repository) ListActiveKeywords(ctx context.Context) ([]Keyword, error) {
	query := `
		SELECT id, keyword, category_id, supplier_id, priority, is_active
		FROM keywords
		WHERE is_active
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	var keywords []Keyword
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.ID, &k.Text, &k.CategoryID, &k.SupplierID, &k.Priority, &k.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

// CreateKeyword stores a new active keyword
func (r *Repository) CreateKeyword(ctx context.Context, text string, categoryID uuid.UUID, supplierID *uuid.UUID, priority int) (*Keyword, error) {
	k := &Keyword{
		ID:         uuid.New(),
		Text:       text,
		CategoryID: categoryID,
		SupplierID: supplierID,
		Priority:   priority,
		IsActive:   true,
	}

	query := `
		INSERT INTO keywords (id, keyword, category_id, supplier_id, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.Exec(ctx, query, k.ID, k.Text, k.CategoryID, k.SupplierID, k.Priority, k.IsActive); err != nil {
		return nil, fmt.Errorf("failed to insert keyword: %w", err)
	}
	return k, nil
}

// SetKeywordActive toggles a keyword without deleting it
func (r *Repository) SetKeywordActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE keywords SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("keyword %s: %w", id, ErrKeywordNotFound)
	}
	return nil
}

// FindCategoryByName returns ErrCategoryNotFound when no category has that name
func (r *Repository) FindCategoryByName(ctx context.Context, name string) (*Category, error) {
	query := `SELECT id, name, type, is_active FROM categories WHERE name = $1`

	var c Category
	err := r.db.QueryRow(ctx, query, name).Scan(&c.ID, &c.Name, &c.Type, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return &c, nil
}

// EnsureCategory returns the category with that name, creating it when missing
func (r *Repository) EnsureCategory(ctx context.Context, name, kind string) (*Category, error) {
	query := `
		INSERT INTO categories (id, name, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, type, is_active
	`

	var c Category
	if err := r.db.QueryRow(ctx, query, uuid.New(), name, kind).Scan(&c.ID, &c.Name, &c.Type, &c.IsActive); err != nil {
		return nil, fmt.Errorf("failed to upsert category: %w", err)
	}
	return &c, nil
}
