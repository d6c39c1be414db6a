// Package sqlstore implements docstore.Store on GORM. Each collection is a table
// keyed by id; Postgres serves production and SQLite serves tests.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

var insertOnlyColumns = map[string]bool{
	"id":           true,
	"created_at":   true,
	"created_from": true,
}

// Options configure the store.
type Options struct {
	Source  string
	LockTTL time.Duration
	Clock   docstore.Clock
}

// Store is the GORM-backed document store.
type Store struct {
	db      *gorm.DB
	source  string
	lockTTL time.Duration
	now     docstore.Clock

	columns sync.Map
}

var _ docstore.Store = (*Store)(nil)

// New builds a store on an open GORM connection.
func New(db *gorm.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = docstore.UTCNow
	}
	source := opts.Source
	if source == "" {
		source = "system"
	}
	return &Store{db: db, source: source, lockTTL: opts.LockTTL, now: clock}, nil
}

func (s *Store) FetchOne(ctx context.Context, collection, id string, dest models.Document) error {
	err := s.db.WithContext(ctx).Table(collection).Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) FetchMany(ctx context.Context, collection string, filter docstore.Filter, sort []docstore.Sort, dest any) error {
	q, err := s.query(ctx, collection, filter)
	if err != nil {
		return err
	}
	q, err = applySort(q, sort)
	if err != nil {
		return err
	}
	if err := q.Find(dest).Error; err != nil {
		return fmt.Errorf("fetch %s: %w", collection, err)
	}
	return nil
}

func (s *Store) FetchPaginated(ctx context.Context, collection string, filter docstore.Filter, page docstore.Page, sort []docstore.Sort, dest any) (docstore.Meta, error) {
	page = page.Normalize()

	countQ, err := s.query(ctx, collection, filter)
	if err != nil {
		return docstore.Meta{}, err
	}
	var total int64
	if err := countQ.Count(&total).Error; err != nil {
		return docstore.Meta{}, fmt.Errorf("count %s: %w", collection, err)
	}

	q, err := s.query(ctx, collection, filter)
	if err != nil {
		return docstore.Meta{}, err
	}
	q, err = applySort(q, sort)
	if err != nil {
		return docstore.Meta{}, err
	}
	if err := q.Offset(page.Offset()).Limit(page.Limit).Find(dest).Error; err != nil {
		return docstore.Meta{}, fmt.Errorf("fetch page %s: %w", collection, err)
	}
	return docstore.NewMeta(total, page), nil
}

func (s *Store) UpdateMany(ctx context.Context, collection string, filter docstore.Filter, fields map[string]any) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("update %s: filter required", collection)
	}
	if len(fields) == 0 {
		return 0, nil
	}
	updates := make(map[string]any, len(fields)+2)
	for key, value := range fields {
		if !docstore.ValidField(key) {
			return 0, fmt.Errorf("%w: %q", docstore.ErrInvalidField, key)
		}
		updates[key] = value
	}
	updates["updated_at"] = s.now()
	updates["last_updated_from"] = docstore.SourceFrom(ctx, s.source)

	q, err := s.query(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s: %w", collection, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, doc models.Document, upsert bool) error {
	if doc == nil || doc.DocumentID() == "" {
		return fmt.Errorf("upsert %s: document id required", collection)
	}
	docstore.Stamp(ctx, doc, s.now(), s.source)

	cols, err := s.updateColumns(doc)
	if err != nil {
		return err
	}

	db := s.db.WithContext(ctx).Table(collection)
	if !upsert {
		res := db.Model(doc).Where("id = ?", doc.DocumentID()).Select(cols).Updates(doc)
		if res.Error != nil {
			return fmt.Errorf("update %s/%s: %w", collection, doc.DocumentID(), res.Error)
		}
		if res.RowsAffected == 0 {
			return docstore.ErrNotFound
		}
		return nil
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(doc).Error
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, doc.DocumentID(), err)
	}
	return nil
}

func (s *Store) BulkUpsert(ctx context.Context, collection string, docs []models.Document) docstore.BulkResult {
	result := docstore.BulkResult{Failed: map[string]error{}}
	for i, doc := range docs {
		if doc == nil {
			result.Failed[fmt.Sprintf("#%d", i)] = fmt.Errorf("nil document")
			continue
		}
		if err := s.Upsert(ctx, collection, doc, true); err != nil {
			result.Failed[doc.DocumentID()] = err
			continue
		}
		result.Saved = append(result.Saved, doc.DocumentID())
	}
	return result
}

// Lock claims the processing flag with a conditional update. Claims older than
// the lock TTL are treated as abandoned and may be taken over.
func (s *Store) Lock(ctx context.Context, collection, id string) (bool, error) {
	now := s.now()
	q := s.db.WithContext(ctx).Table(collection).Where("id = ?", id)
	if s.lockTTL > 0 {
		q = q.Where("(processing = ? OR processing IS NULL OR processing_at IS NULL OR processing_at < ?)", false, now.Add(-s.lockTTL))
	} else {
		q = q.Where("(processing = ? OR processing IS NULL)", false)
	}
	res := q.Updates(map[string]any{
		"processing":        true,
		"processing_at":     now,
		"updated_at":        now,
		"last_updated_from": docstore.SourceFrom(ctx, s.source),
	})
	if res.Error != nil {
		return false, fmt.Errorf("lock %s/%s: %w", collection, id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) Unlock(ctx context.Context, collection, id string) error {
	res := s.db.WithContext(ctx).Table(collection).Where("id = ?", id).Updates(map[string]any{
		"processing":        false,
		"processing_at":     nil,
		"updated_at":        s.now(),
		"last_updated_from": docstore.SourceFrom(ctx, s.source),
	})
	if res.Error != nil {
		return fmt.Errorf("unlock %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) query(ctx context.Context, collection string, filter docstore.Filter) (*gorm.DB, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Table(collection)
	for _, cond := range filter {
		q = applyCondition(q, cond)
	}
	return q, nil
}

func applyCondition(q *gorm.DB, cond docstore.Condition) *gorm.DB {
	field := cond.Field
	switch cond.Op {
	case docstore.OpEq:
		if cond.Value == nil {
			return q.Where(field + " IS NULL")
		}
		return q.Where(field+" = ?", cond.Value)
	case docstore.OpNe:
		if cond.Value == nil {
			return q.Where(field + " IS NOT NULL")
		}
		// missing values match, as they do for the mongo backend
		return q.Where("("+field+" <> ? OR "+field+" IS NULL)", cond.Value)
	case docstore.OpIn:
		return q.Where(field+" IN ?", cond.Value)
	case docstore.OpNin:
		return q.Where(field+" NOT IN ?", cond.Value)
	case docstore.OpLt:
		return q.Where(field+" < ?", cond.Value)
	case docstore.OpLte:
		return q.Where(field+" <= ?", cond.Value)
	case docstore.OpGt:
		return q.Where(field+" > ?", cond.Value)
	case docstore.OpGte:
		return q.Where(field+" >= ?", cond.Value)
	}
	return q
}

func applySort(q *gorm.DB, sort []docstore.Sort) (*gorm.DB, error) {
	for _, s := range sort {
		if !docstore.ValidField(s.Field) {
			return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidField, s.Field)
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Field}, Desc: s.Desc})
	}
	return q, nil
}

// updateColumns lists the columns refreshed on conflict: everything except the
// primary key and the insert-only audit pair.
func (s *Store) updateColumns(doc models.Document) ([]string, error) {
	typ := reflect.TypeOf(doc)
	if cached, ok := s.columns.Load(typ); ok {
		return cached.([]string), nil
	}
	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(doc); err != nil {
		return nil, fmt.Errorf("parse %T: %w", doc, err)
	}
	cols := make([]string, 0, len(stmt.Schema.DBNames))
	for _, name := range stmt.Schema.DBNames {
		if insertOnlyColumns[name] {
			continue
		}
		cols = append(cols, name)
	}
	s.columns.Store(typ, cols)
	return cols, nil
}
