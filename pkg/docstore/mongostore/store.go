// Package mongostore implements docstore.Store directly on the MongoDB driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

const connectTimeout = 10 * time.Second

// Options configure the store.
type Options struct {
	URI          string
	Database     string
	Source       string
	LockTTL      time.Duration
	QueryTimeout time.Duration
	Clock        docstore.Clock
}

// Store is the Mongo-backed document store.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	registry     *bsoncodec.Registry
	source       string
	lockTTL      time.Duration
	queryTimeout time.Duration
	now          docstore.Clock
}

var _ docstore.Store = (*Store)(nil)

// Connect dials MongoDB, verifies connectivity and ensures indexes.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongo uri required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("mongo database required")
	}
	registry := NewRegistry()

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().
		ApplyURI(opts.URI).
		SetRegistry(registry).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(dialCtx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	store := newStore(client, registry, opts)
	if err := store.createIndexes(dialCtx); err != nil {
		_ = client.Disconnect(dialCtx)
		return nil, err
	}
	return store, nil
}

func newStore(client *mongo.Client, registry *bsoncodec.Registry, opts Options) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = docstore.UTCNow
	}
	source := opts.Source
	if source == "" {
		source = "system"
	}
	return &Store{
		client:       client,
		db:           client.Database(opts.Database),
		registry:     registry,
		source:       source,
		lockTTL:      opts.LockTTL,
		queryTimeout: opts.QueryTimeout,
		now:          clock,
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) createIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		models.CollectionOrders: {
			{Keys: bson.D{{Key: "reference_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "settlement_date", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		models.CollectionPayments: {
			{Keys: bson.D{{Key: "reference_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "trnx_type", Value: 1}, {Key: "fulfilled", Value: 1}}},
		},
		models.CollectionWallets: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "brand_id", Value: 1}, {Key: "currency", Value: 1}, {Key: "identifier", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		models.CollectionTransactions: {
			{Keys: bson.D{{Key: "wallet_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		models.CollectionBrands: {
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Store) FetchOne(ctx context.Context, collection, id string, dest models.Document) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) FetchMany(ctx context.Context, collection string, filter docstore.Filter, sort []docstore.Sort, dest any) error {
	query, err := toBSON(filter)
	if err != nil {
		return err
	}
	opts := options.Find()
	if len(sort) > 0 {
		sortDoc, err := toSort(sort)
		if err != nil {
			return err
		}
		opts.SetSort(sortDoc)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", collection, err)
	}
	if err := cur.All(ctx, dest); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

func (s *Store) FetchPaginated(ctx context.Context, collection string, filter docstore.Filter, page docstore.Page, sort []docstore.Sort, dest any) (docstore.Meta, error) {
	page = page.Normalize()
	query, err := toBSON(filter)
	if err != nil {
		return docstore.Meta{}, err
	}
	opts := options.Find().SetSkip(int64(page.Offset())).SetLimit(int64(page.Limit))
	if len(sort) > 0 {
		sortDoc, err := toSort(sort)
		if err != nil {
			return docstore.Meta{}, err
		}
		opts.SetSort(sortDoc)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	coll := s.db.Collection(collection)
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return docstore.Meta{}, fmt.Errorf("count %s: %w", collection, err)
	}
	cur, err := coll.Find(ctx, query, opts)
	if err != nil {
		return docstore.Meta{}, fmt.Errorf("fetch page %s: %w", collection, err)
	}
	if err := cur.All(ctx, dest); err != nil {
		return docstore.Meta{}, fmt.Errorf("decode %s: %w", collection, err)
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
	query, err := toBSON(filter)
	if err != nil {
		return 0, err
	}
	set, err := fieldsUpdate(fields, s.now(), docstore.SourceFrom(ctx, s.source))
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.Collection(collection).UpdateMany(ctx, query, set)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", collection, err)
	}
	return res.MatchedCount, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, doc models.Document, upsert bool) error {
	if doc == nil || doc.DocumentID() == "" {
		return fmt.Errorf("upsert %s: document id required", collection)
	}
	update, err := s.upsertModel(ctx, doc)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": doc.DocumentID()}, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, doc.DocumentID(), err)
	}
	if !upsert && res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// upsertModel splits the document into a $set body and an insert-only $setOnInsert body.
func (s *Store) upsertModel(ctx context.Context, doc models.Document) (bson.M, error) {
	docstore.Stamp(ctx, doc, s.now(), s.source)

	raw, err := bson.MarshalWithRegistry(s.registry, doc)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", doc, err)
	}
	var body bson.M
	if err := bson.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", doc, err)
	}

	onInsert := bson.M{}
	for _, key := range []string{"created_at", "created_from"} {
		if v, ok := body[key]; ok {
			onInsert[key] = v
			delete(body, key)
		}
	}
	delete(body, "_id")
	return bson.M{"$set": body, "$setOnInsert": onInsert}, nil
}

func (s *Store) BulkUpsert(ctx context.Context, collection string, docs []models.Document) docstore.BulkResult {
	result := docstore.BulkResult{Failed: map[string]error{}}

	writes := make([]mongo.WriteModel, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		if doc == nil || doc.DocumentID() == "" {
			result.Failed[fmt.Sprintf("#%d", i)] = fmt.Errorf("document id required")
			continue
		}
		update, err := s.upsertModel(ctx, doc)
		if err != nil {
			result.Failed[doc.DocumentID()] = err
			continue
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.DocumentID()}).
			SetUpdate(update).
			SetUpsert(true))
		ids = append(ids, doc.DocumentID())
	}
	if len(writes) == 0 {
		return result
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.Collection(collection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return bulkOutcome(result, ids, err)
}

// bulkOutcome attributes an unordered bulk write's error to the documents it names.
// An error that cannot be attributed fails every document.
func bulkOutcome(result docstore.BulkResult, ids []string, err error) docstore.BulkResult {
	failedIdx := map[int]error{}
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
			for _, id := range ids {
				result.Failed[id] = err
			}
			return result
		}
		for _, we := range bulkErr.WriteErrors {
			failedIdx[we.Index] = we
		}
	}
	for i, id := range ids {
		if werr, ok := failedIdx[i]; ok {
			result.Failed[id] = werr
			continue
		}
		result.Saved = append(result.Saved, id)
	}
	return result
}

// fieldsUpdate builds the $set of UpdateMany, stamping the audit fields.
func fieldsUpdate(fields map[string]any, now time.Time, source string) (bson.M, error) {
	set := bson.M{}
	for key, value := range fields {
		if !docstore.ValidField(key) {
			return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidField, key)
		}
		set[key] = value
	}
	set["updated_at"] = now
	set["last_updated_from"] = source
	return bson.M{"$set": set}, nil
}

// lockFilter matches the document while it is unclaimed or, with a positive ttl, while
// its claim is older than ttl.
func lockFilter(id string, now time.Time, ttl time.Duration) bson.M {
	free := bson.A{
		bson.M{"processing": bson.M{"$ne": true}},
	}
	if ttl > 0 {
		free = append(free,
			bson.M{"processing_at": bson.M{"$lt": now.Add(-ttl)}},
			bson.M{"processing_at": bson.M{"$exists": false}},
		)
	}
	return bson.M{"_id": id, "$or": free}
}

func claimUpdate(now time.Time, source string) bson.M {
	return bson.M{"$set": bson.M{
		"processing":        true,
		"processing_at":     now,
		"updated_at":        now,
		"last_updated_from": source,
	}}
}

func releaseUpdate(now time.Time, source string) bson.M {
	return bson.M{
		"$set": bson.M{
			"processing":        false,
			"updated_at":        now,
			"last_updated_from": source,
		},
		"$unset": bson.M{"processing_at": ""},
	}
}

func (s *Store) Lock(ctx context.Context, collection, id string) (bool, error) {
	now := s.now()
	filter := lockFilter(id, now, s.lockTTL)
	update := claimUpdate(now, docstore.SourceFrom(ctx, s.source))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("lock %s/%s: %w", collection, id, err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) Unlock(ctx context.Context, collection, id string) error {
	update := releaseUpdate(s.now(), docstore.SourceFrom(ctx, s.source))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("unlock %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
