// Package docstore is the collection-oriented persistence contract shared by the
// SQL and Mongo backends. Documents are matched by id; there are no multi-document
// transactions, so callers coordinate through the advisory processing lock.
package docstore

import (
	"context"
	stdErrors "errors"
	"fmt"
	"regexp"
	"time"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = stdErrors.New("document not found")
	// ErrInvalidField is returned for filter, sort or update keys that are not plain field names.
	ErrInvalidField = stdErrors.New("invalid field name")
)

// Store is the document store contract.
type Store interface {
	FetchOne(ctx context.Context, collection, id string, dest models.Document) error
	FetchMany(ctx context.Context, collection string, filter Filter, sort []Sort, dest any) error
	FetchPaginated(ctx context.Context, collection string, filter Filter, page Page, sort []Sort, dest any) (Meta, error)
	UpdateMany(ctx context.Context, collection string, filter Filter, fields map[string]any) (int64, error)
	Upsert(ctx context.Context, collection string, doc models.Document, upsert bool) error
	BulkUpsert(ctx context.Context, collection string, docs []models.Document) BulkResult
	Lock(ctx context.Context, collection, id string) (bool, error)
	Unlock(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpIn  Op = "in"
	OpNin Op = "nin"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"
)

// Condition is a single field comparison.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions.
type Filter []Condition

func Eq(field string, value any) Condition  { return Condition{Field: field, Op: OpEq, Value: value} }
func Ne(field string, value any) Condition  { return Condition{Field: field, Op: OpNe, Value: value} }
func In(field string, value any) Condition  { return Condition{Field: field, Op: OpIn, Value: value} }
func Nin(field string, value any) Condition { return Condition{Field: field, Op: OpNin, Value: value} }
func Lt(field string, value any) Condition  { return Condition{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value any) Condition { return Condition{Field: field, Op: OpLte, Value: value} }
func Gt(field string, value any) Condition  { return Condition{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value any) Condition { return Condition{Field: field, Op: OpGte, Value: value} }

// Where builds a filter from conditions.
func Where(conds ...Condition) Filter {
	return Filter(conds)
}

// Sort orders results by a field.
type Sort struct {
	Field string
	Desc  bool
}

// Page selects a window of results. Page numbers start at 1.
type Page struct {
	Limit int
	Page  int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	return p
}

// Offset is the number of rows skipped before the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta describes a paginated result.
type Meta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NewMeta computes page counts for a total.
func NewMeta(total int64, page Page) Meta {
	pages := 0
	if page.Limit > 0 {
		pages = int((total + int64(page.Limit) - 1) / int64(page.Limit))
	}
	return Meta{Total: total, Page: page.Page, Limit: page.Limit, Pages: pages}
}

// BulkResult reports which documents were written and which were dropped.
type BulkResult struct {
	Saved  []string
	Failed map[string]error
}

// Err returns an error only when nothing was saved.
func (r BulkResult) Err() error {
	if len(r.Saved) > 0 || len(r.Failed) == 0 {
		return nil
	}
	for id, err := range r.Failed {
		return fmt.Errorf("bulk upsert %s: %w", id, err)
	}
	return nil
}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidField reports whether name is safe to interpolate as a column or key.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Validate checks every field name in the filter.
func (f Filter) Validate() error {
	for _, cond := range f {
		if !ValidField(cond.Field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, cond.Field)
		}
		switch cond.Op {
		case OpEq, OpNe, OpIn, OpNin, OpLt, OpLte, OpGt, OpGte:
		default:
			return fmt.Errorf("unsupported operator %q", cond.Op)
		}
	}
	return nil
}

type sourceKey struct{}

// WithSource tags writes made with ctx with the component performing them.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the write source carried by ctx or the fallback.
func SourceFrom(ctx context.Context, fallback string) string {
	if ctx != nil {
		if v, ok := ctx.Value(sourceKey{}).(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

// Stamp fills the audit block for a write. Insert-only fields are set as well;
// backends decide whether to persist them.
func Stamp(ctx context.Context, doc models.Document, now time.Time, fallbackSource string) {
	audit := doc.AuditFields()
	source := SourceFrom(ctx, fallbackSource)
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = now
	}
	if audit.CreatedFrom == "" {
		audit.CreatedFrom = source
	}
	audit.UpdatedAt = now
	audit.LastUpdatedFrom = source
}

// Clock returns the current time. Tests swap it for a fixed clock.
type Clock func() time.Time

// UTCNow is the default clock.
func UTCNow() time.Time {
	return time.Now().UTC()
}
