package categorization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Store is everything the service needs from persistence
type Store interface {
	KeywordStore
	CreateKeyword(ctx context.Context, text string, categoryID uuid.UUID, supplierID *uuid.UUID, priority int) (*Keyword, error)
	SetKeywordActive(ctx context.Context, id uuid.UUID, active bool) error
	FindCategoryByName(ctx context.Context, name string) (*Category, error)
	EnsureCategory(ctx context.Context, name, kind string) (*Category, error)
}

// Category kinds accepted by the categories table
var CategoryKinds = []string{"expense", "income", "transfer"}

// Service categorizes descriptions against the persisted keyword list
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new categorization service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CategorizeBatch fetches the keyword list once and matches every description
// against it. Store errors are returned as is, without partial results.
func (s *Service) CategorizeBatch(ctx context.Context, descriptions []string) ([]Result, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	keywords, err := s.store.ListActiveKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}

	engine := NewEngine(keywords)
	results := engine.MatchBatch(descriptions)

	matched := 0
	for _, r := range results {
		if r.Matched() {
			matched++
		}
	}
	s.logger.Debug("categorized batch",
		slog.Int("descriptions", len(descriptions)),
		slog.Int("keywords", engine.PatternCount()),
		slog.Int("matched", matched))

	return results, nil
}

// AddKeyword registers a keyword under a category. An existing category keeps
// its kind; a missing one is created with kind.
func (s *Service) AddKeyword(ctx context.Context, categoryName, kind, text string, priority int) (*Keyword, error) {
	categoryName = strings.TrimSpace(categoryName)
	if categoryName == "" {
		return nil, fmt.Errorf("category name is required")
	}
	if Normalize(text) == "" {
		return nil, fmt.Errorf("keyword %q is blank", text)
	}

	category, err := s.store.FindCategoryByName(ctx, categoryName)
	if errors.Is(err, ErrCategoryNotFound) {
		if !slices.Contains(CategoryKinds, kind) {
			return nil, fmt.Errorf("unknown category kind %q", kind)
		}
		category, err = s.store.EnsureCategory(ctx, categoryName, kind)
		if err == nil {
			s.logger.Info("category created", slog.String("category", category.Name), slog.String("kind", kind))
		}
	}
	if err != nil {
		return nil, err
	}

	k, err := s.store.CreateKeyword(ctx, strings.TrimSpace(text), category.ID, nil, priority)
	if err != nil {
		return nil, err
	}

	s.logger.Info("keyword added",
		slog.String("keyword", k.Text),
		slog.String("category", category.Name),
		slog.Int("priority", priority))
	return k, nil
}

// SetKeywordActive enables or disables a keyword. Disabled keywords stay stored
// but never match.
func (s *Service) SetKeywordActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.store.SetKeywordActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info("keyword updated", slog.String("id", id.String()), slog.Bool("active", active))
	return nil
}
