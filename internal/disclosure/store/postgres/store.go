package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"equitrail/internal/disclosure"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
	txcontext "equitrail/pkg/platform/tx"
)

// Store persists disclosures and company tier state in Postgres.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetDisclosure(ctx context.Context, disclosureID id.DisclosureID) (*disclosure.Disclosure, error) {
	const query = `
		SELECT id, company_id, kind, status, approved_by, approved_at
		FROM disclosures
		WHERE id = $1
	`
	var (
		d          disclosure.Disclosure
		rawID      uuid.UUID
		rawCompany uuid.NullUUID
		approvedBy sql.NullString
		approvedAt sql.NullTime
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(disclosureID)).Scan(
		&rawID, &rawCompany, &d.Kind, &d.Status, &approvedBy, &approvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query disclosure: %w", err)
	}

	d.ID = id.DisclosureID(rawID)
	if rawCompany.Valid {
		d.CompanyID = id.CompanyID(rawCompany.UUID)
	}
	if approvedBy.Valid {
		d.ApprovedBy = approvedBy.String
	}
	if approvedAt.Valid {
		d.ApprovedAt = approvedAt.Time
	}
	return &d, nil
}

func (s *Store) GetCompany(ctx context.Context, companyID id.CompanyID) (*disclosure.Company, error) {
	const query = `SELECT id, name, disclosure_tier FROM companies WHERE id = $1`
	var (
		c     disclosure.Company
		rawID uuid.UUID
		tier  int
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(companyID)).Scan(&rawID, &c.Name, &tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query company: %w", err)
	}
	c.ID = id.CompanyID(rawID)
	c.Tier = disclosure.Tier(tier)
	return &c, nil
}

func (s *Store) ApprovedKinds(ctx context.Context, companyID id.CompanyID) ([]string, error) {
	const query = `
		SELECT DISTINCT kind FROM disclosures
		WHERE company_id = $1 AND status = 'approved'
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, uuid.UUID(companyID))
	if err != nil {
		return nil, fmt.Errorf("query approved kinds: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, fmt.Errorf("scan approved kind: %w", err)
		}
		kinds = append(kinds, kind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approved kinds: %w", err)
	}
	return kinds, nil
}

// PromoteCompany applies the tier transition guarded by the current tier.
// Zero rows affected means another writer moved the tier first.
func (s *Store) PromoteCompany(ctx context.Context, companyID id.CompanyID, from, to disclosure.Tier) error {
	const query = `
		UPDATE companies SET disclosure_tier = $3
		WHERE id = $1 AND disclosure_tier = $2
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, uuid.UUID(companyID), int(from), int(to))
	if err != nil {
		return fmt.Errorf("promote company tier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("promote company tier rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
