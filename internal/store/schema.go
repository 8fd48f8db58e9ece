package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
)

type columnTypes struct {
	money     string
	timestamp string
	json      string
	boolean   string
}

var dialectTypes = map[Dialect]columnTypes{
	DialectSQLite: {
		money:     "TEXT",
		timestamp: "TEXT",
		json:      "JSON",
		boolean:   "BOOLEAN",
	},
	DialectPostgres: {
		money:     "NUMERIC(15,2)",
		timestamp: "TIMESTAMPTZ",
		json:      "JSONB",
		boolean:   "BOOLEAN",
	},
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS wallets (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	wallet_type TEXT NOT NULL,
	balance {money} NOT NULL DEFAULT 0,
	created {timestamp} NOT NULL,
	updated {timestamp} NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_user_type ON wallets (user_id, wallet_type);

CREATE TABLE IF NOT EXISTS wallet_transactions (
	id TEXT PRIMARY KEY,
	wallet_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	wallet_type TEXT NOT NULL,
	type TEXT NOT NULL,
	amount {money} NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created {timestamp} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user ON wallet_transactions (user_id, created);

CREATE TABLE IF NOT EXISTS tickets (
	id TEXT PRIMARY KEY,
	seller_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	venue TEXT NOT NULL DEFAULT '',
	event_date {timestamp} NOT NULL,
	price {money} NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	remaining_quantity INTEGER NOT NULL CHECK (remaining_quantity >= 0 AND remaining_quantity <= quantity),
	created {timestamp} NOT NULL,
	updated {timestamp} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_seller ON tickets (seller_id);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	buyer_id TEXT NOT NULL,
	ticket_id TEXT NOT NULL REFERENCES tickets (id),
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	total_price {money} NOT NULL,
	wallet_type TEXT NOT NULL,
	status TEXT NOT NULL,
	is_sent {boolean} NOT NULL DEFAULT FALSE,
	idempotency_key TEXT NOT NULL DEFAULT '',
	created {timestamp} NOT NULL,
	updated {timestamp} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders (buyer_id, created);
CREATE INDEX IF NOT EXISTS idx_orders_ticket ON orders (ticket_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency ON orders (buyer_id, idempotency_key) WHERE idempotency_key <> '';

CREATE TABLE IF NOT EXISTS ticket_codes (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders (id),
	code TEXT NOT NULL,
	is_used {boolean} NOT NULL DEFAULT FALSE,
	created {timestamp} NOT NULL,
	UNIQUE (order_id, code)
);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	order_id TEXT NOT NULL DEFAULT '',
	ticket_codes {json} NOT NULL,
	is_read {boolean} NOT NULL DEFAULT FALSE,
	created {timestamp} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created);
`

var tables = []string{
	"notifications",
	"ticket_codes",
	"orders",
	"tickets",
	"wallet_transactions",
	"wallets",
}

func schemaStatements(dialect Dialect) []string {
	types, ok := dialectTypes[dialect]
	if !ok {
		types = dialectTypes[DialectSQLite]
	}

	ddl := strings.NewReplacer(
		"{money}", types.money,
		"{timestamp}", types.timestamp,
		"{json}", types.json,
		"{boolean}", types.boolean,
	).Replace(schemaTemplate)

	var stmts []string
	for _, stmt := range strings.Split(ddl, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// CreateSchema creates the marketplace tables and indexes if they are missing.
func CreateSchema(ctx context.Context, q dbx.Builder, dialect Dialect) error {
	for _, stmt := range schemaStatements(dialect) {
		if _, err := q.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func DropSchema(ctx context.Context, q dbx.Builder) error {
	for _, table := range tables {
		if _, err := q.NewQuery("DROP TABLE IF EXISTS " + table).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	return nil
}
