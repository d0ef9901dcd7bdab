package postgres

import "database/sql"

// EnsureSchema creates the ledger tables if they do not exist yet.
func EnsureSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		number VARCHAR(10) NOT NULL UNIQUE,
		balance NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		status VARCHAR(10) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		last_activity_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts (user_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		kind VARCHAR(10) NOT NULL,
		amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		account_id UUID NOT NULL REFERENCES accounts(id),
		to_account_id UUID REFERENCES accounts(id),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions (account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_to_account_id ON transactions (to_account_id);

	CREATE TABLE IF NOT EXISTS outbox_events (
		id SERIAL PRIMARY KEY,
		type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		status VARCHAR(10) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	`
	_, err := db.Exec(query)
	return err
}
