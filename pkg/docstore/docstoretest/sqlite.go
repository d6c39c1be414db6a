// Package docstoretest builds SQLite-backed document stores for package tests.
package docstoretest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore/sqlstore"
)

const auditColumns = `
  processing BOOLEAN NOT NULL DEFAULT 0,
  processing_at DATETIME,
  created_at DATETIME,
  created_from TEXT,
  updated_at DATETIME,
  last_updated_from TEXT`

const plainAuditColumns = `
  created_at DATETIME,
  created_from TEXT,
  updated_at DATETIME,
  last_updated_from TEXT`

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  reference_id TEXT,
  status TEXT,
  product_id TEXT,
  product_name TEXT,
  brand_id TEXT,
  user_id TEXT,
  amount NUMERIC,
  unit_price NUMERIC,
  order_currency TEXT,
  quantity INTEGER,
  type TEXT,
  fulfill_id TEXT,
  fulfill_response TEXT,
  tokens TEXT,
  partner TEXT,
  payment_id TEXT,
  mille NUMERIC,
  mille_credited BOOLEAN NOT NULL DEFAULT 0,
  product_brand_commission TEXT,
  product_parent_brand_commission TEXT,
  order_brand_commission TEXT,
  order_parent_brand_commission TEXT,
  master_commission TEXT,
  settlement_date DATETIME,
  settlement_reference TEXT,
  rates TEXT,` + auditColumns + `
);`,
	`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  reference_id TEXT,
  user_id TEXT,
  brand_id TEXT,
  wallet_id TEXT,
  amount NUMERIC,
  charges NUMERIC,
  currency TEXT,
  currency_symbol TEXT,
  gateway TEXT,
  trnx_type TEXT,
  type TEXT,
  status TEXT,
  share_rate NUMERIC,
  description TEXT,
  bank_payment_info TEXT,
  fulfilled BOOLEAN NOT NULL DEFAULT 0,
  fulfillment_date DATETIME,
  transfer_id TEXT,
  transfer_code TEXT,
  transfer_reference_id TEXT,
  failure_reason TEXT,
  others TEXT,` + auditColumns + `
);`,
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  brand_id TEXT,
  email TEXT,
  name TEXT,
  default_currency TEXT,
  wallet TEXT,
  wallet_version INTEGER NOT NULL DEFAULT 0,` + plainAuditColumns + `
);`,
	`CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  brand_id TEXT,
  identifier TEXT,
  currency TEXT,
  value NUMERIC,
  share_value NUMERIC,
  version INTEGER NOT NULL DEFAULT 0,` + plainAuditColumns + `
);`,
	`CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT,
  user_id TEXT,
  action TEXT,
  amount NUMERIC,
  share_delta NUMERIC,
  balance_before NUMERIC,
  balance_after NUMERIC,
  currency TEXT,
  reference TEXT,` + plainAuditColumns + `
);`,
	`CREATE TABLE IF NOT EXISTS currencies (
  id TEXT PRIMARY KEY,
  code TEXT,
  rate NUMERIC,
  symbol TEXT,
  crypto BOOLEAN NOT NULL DEFAULT 0,
  source TEXT,` + plainAuditColumns + `
);`,
	`CREATE TABLE IF NOT EXISTS brands (
  id TEXT PRIMARY KEY,
  name TEXT,
  parent_id TEXT,
  owner_id TEXT,
  share_value NUMERIC,
  sales_commission NUMERIC,
  mille_rate NUMERIC,
  price_rules TEXT,
  bank TEXT,
  domain TEXT,` + plainAuditColumns + `
);`,
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  brand_id TEXT,
  name TEXT,
  type TEXT,
  price NUMERIC,
  currency TEXT,
  fulfilment_type TEXT,
  partner TEXT,
  partner_code TEXT,
  price_rules TEXT,
  active BOOLEAN NOT NULL DEFAULT 0,` + plainAuditColumns + `
);`,
}

var dbSeq atomic.Int64

// OpenSQLite opens an isolated in-memory database with every collection table.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:docstore_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// NewSQLStore returns a SQL document store over a fresh SQLite database.
func NewSQLStore(t testing.TB) *sqlstore.Store {
	t.Helper()
	return NewSQLStoreWithClock(t, nil)
}

// NewSQLStoreWithClock is NewSQLStore with a fixed clock.
func NewSQLStoreWithClock(t testing.TB, clock docstore.Clock) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.New(OpenSQLite(t), sqlstore.Options{
		Source:  "test",
		LockTTL: 10 * time.Minute,
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("new sql store: %v", err)
	}
	return store
}

// FixedClock returns a clock frozen at ts.
func FixedClock(ts time.Time) docstore.Clock {
	return func() time.Time { return ts }
}
