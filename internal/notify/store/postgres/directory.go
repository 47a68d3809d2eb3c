package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
	txcontext "equitrail/pkg/platform/tx"
)

// Directory resolves notification recipients from the users table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// AdminRecipients returns the addresses of all active admin users.
func (d *Directory) AdminRecipients(ctx context.Context) ([]string, error) {
	const query = `
		SELECT email FROM users
		WHERE role = 'admin' AND deactivated_at IS NULL
		ORDER BY email
	`
	rows, err := txcontext.ExecutorFrom(ctx, d.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query admin recipients: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan admin recipient: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin recipients: %w", err)
	}
	return emails, nil
}

// RecipientFor returns the address of one user.
func (d *Directory) RecipientFor(ctx context.Context, userID id.UserID) (string, error) {
	const query = `SELECT email FROM users WHERE id = $1`
	var email string
	err := txcontext.ExecutorFrom(ctx, d.db).QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query user recipient: %w", err)
	}
	return email, nil
}
