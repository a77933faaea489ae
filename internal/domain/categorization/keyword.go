package categorization

import "github.com/google/uuid"

// Keyword assigns CategoryID (and optionally SupplierID) to any description that
// contains its text once both are normalized.
type Keyword struct {
	ID         uuid.UUID
	Text       string
	CategoryID uuid.UUID
	SupplierID *uuid.UUID
	Priority   int
	IsActive   bool
}

// Result is the outcome for one description. All fields are nil when no keyword matched.
type Result struct {
	CategoryID *uuid.UUID
	SupplierID *uuid.UUID
	KeywordID  *uuid.UUID
}

// Matched reports whether a keyword assigned a category.
func (r Result) Matched() bool {
	return r.CategoryID != nil
}

// Category is a named bucket keywords point to
type Category struct {
	ID       uuid.UUID
	Name     string
	Type     string
	IsActive bool
}

// Categorize matches a single description against keywords.
func Categorize(description string, keywords []Keyword) Result {
	return NewEngine(keywords).Match(description)
}

// CategorizeBatch matches every description against one pre-fetched keyword list,
// which is normalized once for the whole batch. Results are in input order.
func CategorizeBatch(descriptions []string, keywords []Keyword) []Result {
	return NewEngine(keywords).MatchBatch(descriptions)
}
