package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS account_operations (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    account_number TEXT NOT NULL CHECK (account_number <> ''),
    operation_type TEXT NOT NULL,
    amount         NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
    interest       NUMERIC(9, 4),
    payments       INTEGER,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS account_operations_account_created_idx
    ON account_operations (account_number, created_at DESC);
`

// Migrate creates account_operations if it does not exist yet.
// operation_type is left unconstrained: rows written out-of-band may carry
// other values and the dashboard renders them with a fallback style.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate account_operations: %w", err)
	}
	return nil
}
