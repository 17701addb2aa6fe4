package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order.  Every statement is idempotent so Migrate
// can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		username VARCHAR(30) NOT NULL,
		password_hash VARCHAR(255) NULL,
		email_verified TINYINT(1) NOT NULL DEFAULT 0,
		role ENUM('talent','creative','client','admin') NOT NULL,
		suspended TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_accounts_email (email),
		UNIQUE KEY uq_accounts_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_ai_ci`,

	`CREATE TABLE IF NOT EXISTS validation_tokens (
		account_id BIGINT UNSIGNED NOT NULL,
		token CHAR(64) NOT NULL,
		random_code VARCHAR(32) NOT NULL,
		token_expiry DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id),
		UNIQUE KEY uq_validation_tokens_token (token),
		CONSTRAINT fk_validation_tokens_account FOREIGN KEY (account_id) REFERENCES accounts (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		account_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_account (account_id),
		CONSTRAINT fk_refresh_tokens_account FOREIGN KEY (account_id) REFERENCES accounts (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS wallets (
		account_id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		balance DECIMAL(18,2) NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_wallets_account FOREIGN KEY (account_id) REFERENCES accounts (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS transaction_histories (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reference VARCHAR(100) NOT NULL,
		account_id BIGINT UNSIGNED NOT NULL,
		type ENUM('deposit','withdrawal') NOT NULL,
		status ENUM('PENDING','SUCCESS','FAILED','REVERSED') NOT NULL DEFAULT 'PENDING',
		amount DECIMAL(18,2) NOT NULL,
		settlement_amount DECIMAL(18,2) NOT NULL,
		processing_fee DECIMAL(18,2) NOT NULL DEFAULT 0,
		total_fee DECIMAL(18,2) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_transaction_histories_reference (reference),
		KEY idx_transaction_histories_account (account_id, created_at),
		CONSTRAINT fk_transaction_histories_account FOREIGN KEY (account_id) REFERENCES accounts (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
