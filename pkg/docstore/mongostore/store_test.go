package mongostore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

func TestLockFilterTakesOverStaleClaims(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	filter := lockFilter("o-1", now, 5*time.Minute)
	assert.Equal(t, "o-1", filter["_id"])
	assert.Equal(t, bson.A{
		bson.M{"processing": bson.M{"$ne": true}},
		bson.M{"processing_at": bson.M{"$lt": now.Add(-5 * time.Minute)}},
		bson.M{"processing_at": bson.M{"$exists": false}},
	}, filter["$or"])
}

func TestLockFilterWithoutTTLOnlyMatchesUnclaimed(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	filter := lockFilter("o-1", now, 0)
	assert.Equal(t, bson.A{bson.M{"processing": bson.M{"$ne": true}}}, filter["$or"])
}

func TestClaimAndReleaseUpdates(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	claim := claimUpdate(now, "worker")
	assert.Equal(t, bson.M{
		"processing":        true,
		"processing_at":     now,
		"updated_at":        now,
		"last_updated_from": "worker",
	}, claim["$set"])

	release := releaseUpdate(now, "worker")
	set := release["$set"].(bson.M)
	assert.Equal(t, false, set["processing"])
	assert.Equal(t, now, set["updated_at"])
	assert.Equal(t, bson.M{"processing_at": ""}, release["$unset"])
}

func TestFieldsUpdateStampsAuditFields(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	update, err := fieldsUpdate(map[string]any{"status": "processed"}, now, "api")
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$set": bson.M{
		"status":            "processed",
		"updated_at":        now,
		"last_updated_from": "api",
	}}, update)

	_, err = fieldsUpdate(map[string]any{"$inc": 1}, now, "api")
	assert.ErrorIs(t, err, docstore.ErrInvalidField)
}

func TestBulkOutcomeIsolatesFailedWrites(t *testing.T) {
	ids := []string{"o-1", "o-2", "o-3"}
	err := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
		{WriteError: mongo.WriteError{Index: 1, Code: 11000, Message: "duplicate key"}},
	}}

	result := bulkOutcome(docstore.BulkResult{Failed: map[string]error{}}, ids, err)
	assert.Equal(t, []string{"o-1", "o-3"}, result.Saved)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed["o-2"].Error(), "duplicate key")
}

func TestBulkOutcomeFailsEverythingOnUnattributedError(t *testing.T) {
	ids := []string{"o-1", "o-2"}
	pre := docstore.BulkResult{Failed: map[string]error{"#2": errors.New("document id required")}}

	result := bulkOutcome(pre, ids, errors.New("connection reset"))
	assert.Empty(t, result.Saved)
	assert.Len(t, result.Failed, 3)

	concern := mongo.BulkWriteException{WriteConcernError: &mongo.WriteConcernError{Code: 64, Message: "waiting for replication timed out"}}
	result = bulkOutcome(docstore.BulkResult{Failed: map[string]error{}}, ids, concern)
	assert.Empty(t, result.Saved)
	assert.Len(t, result.Failed, 2)
}

func TestBulkOutcomeWithoutError(t *testing.T) {
	result := bulkOutcome(docstore.BulkResult{Failed: map[string]error{}}, []string{"o-1"}, nil)
	assert.Equal(t, []string{"o-1"}, result.Saved)
	assert.Empty(t, result.Failed)
}
