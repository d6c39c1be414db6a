package models

import "time"

// Collection names shared by every document store backend.
const (
	CollectionOrders       = "orders"
	CollectionPayments     = "payments"
	CollectionUsers        = "users"
	CollectionWallets      = "wallets"
	CollectionTransactions = "transactions"
	CollectionCurrencies   = "currencies"
	CollectionBrands       = "brands"
	CollectionProducts     = "products"
)

// Audit carries the bookkeeping columns every document shares. CreatedAt and
// CreatedFrom are written on insert only; the update pair is refreshed on every write.
type Audit struct {
	CreatedAt       time.Time `gorm:"column:created_at" bson:"created_at" json:"createdAt"`
	CreatedFrom     string    `gorm:"column:created_from" bson:"created_from" json:"createdFrom,omitempty"`
	UpdatedAt       time.Time `gorm:"column:updated_at" bson:"updated_at" json:"updatedAt"`
	LastUpdatedFrom string    `gorm:"column:last_updated_from" bson:"last_updated_from" json:"lastUpdatedFrom,omitempty"`
}

// AuditFields exposes the audit block to the store adapters.
func (a *Audit) AuditFields() *Audit {
	return a
}

// Document is implemented by every persisted model.
type Document interface {
	DocumentID() string
	AuditFields() *Audit
}

// Lockable documents carry the advisory processing flag.
type Lockable interface {
	Document
	IsProcessing() bool
}

// ProcessingLock is the advisory processing claim embedded on orders and payments.
type ProcessingLock struct {
	Processing   bool       `gorm:"column:processing" bson:"processing" json:"processing"`
	ProcessingAt *time.Time `gorm:"column:processing_at" bson:"processing_at,omitempty" json:"processingAt,omitempty"`
}

// IsProcessing reports whether the record is currently claimed.
func (l ProcessingLock) IsProcessing() bool {
	return l.Processing
}
