package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/target/karmabot/internal/domain"
)

// TransactionStore is the PostgreSQL-backed karma ledger. Expired
// records stay in the table; every aggregate filters them with
// expires_at > now(), so time comparisons use the database clock.
type TransactionStore struct {
	pool *pgxpool.Pool
}

var _ domain.TransactionStore = (*TransactionStore)(nil)

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) Insert(ctx context.Context, tx domain.KarmaTransaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO karma_transactions (id, workspace_id, kind, subject_id, subject_display, quantity, gifter_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.WorkspaceID, string(tx.Kind), tx.SubjectID, tx.SubjectDisplay, tx.Quantity, tx.GifterID, tx.CreatedAt, tx.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert karma transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) Total(ctx context.Context, workspaceID string, kind domain.Kind, subjectID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM karma_transactions
		WHERE workspace_id = $1 AND kind = $2 AND subject_id = $3 AND expires_at > now()
	`, workspaceID, string(kind), subjectID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query karma total: %w", err)
	}
	return total, nil
}

func (s *TransactionStore) TypeTotal(ctx context.Context, workspaceID string, kind domain.Kind) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM karma_transactions
		WHERE workspace_id = $1 AND kind = $2 AND expires_at > now()
	`, workspaceID, string(kind)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query type total: %w", err)
	}
	return total, nil
}

func (s *TransactionStore) GrandTotal(ctx context.Context, workspaceID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM karma_transactions
		WHERE workspace_id = $1 AND expires_at > now()
	`, workspaceID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query grand total: %w", err)
	}
	return total, nil
}

func (s *TransactionStore) TopN(ctx context.Context, workspaceID string, filter domain.TopNFilter) ([]domain.SubjectTotal, error) {
	query := `
		SELECT kind, subject_id, COALESCE(SUM(quantity), 0) AS total
		FROM karma_transactions
		WHERE workspace_id = $1 AND expires_at > now()`
	args := []any{workspaceID}

	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.GifterID != "" {
		args = append(args, filter.GifterID)
		query += fmt.Sprintf(" AND gifter_id = $%d", len(args))
	}

	query += " GROUP BY kind, subject_id ORDER BY total"
	if filter.Direction == domain.Ascending {
		query += " ASC"
	} else {
		query += " DESC"
	}
	// Stable tie order so repeated queries render the same list.
	query += ", kind, subject_id"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	var out []domain.SubjectTotal
	for rows.Next() {
		var kind string
		var row domain.SubjectTotal
		if err := rows.Scan(&kind, &row.SubjectID, &row.Total); err != nil {
			return nil, fmt.Errorf("failed to scan standings row: %w", err)
		}
		row.Kind = domain.Kind(kind)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read standings rows: %w", err)
	}
	return out, nil
}

func (s *TransactionStore) GifterCount(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT gifter_id)
		FROM karma_transactions
		WHERE workspace_id = $1 AND expires_at > now()
	`, workspaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count gifters: %w", err)
	}
	return count, nil
}

func (s *TransactionStore) SubjectCount(ctx context.Context, workspaceID string, kind *domain.Kind) (int, error) {
	query := `
		SELECT COUNT(DISTINCT (kind, subject_id))
		FROM karma_transactions
		WHERE workspace_id = $1 AND expires_at > now()`
	args := []any{workspaceID}
	if kind != nil {
		args = append(args, string(*kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count subjects: %w", err)
	}
	return count, nil
}

func (s *TransactionStore) OperationCount(ctx context.Context, workspaceID string, kind domain.Kind, subjectID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM karma_transactions
		WHERE workspace_id = $1 AND kind = $2 AND subject_id = $3 AND expires_at > now()
	`, workspaceID, string(kind), subjectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}

func (s *TransactionStore) TypeOperationCount(ctx context.Context, workspaceID string, kind *domain.Kind) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM karma_transactions
		WHERE workspace_id = $1 AND expires_at > now()`
	args := []any{workspaceID}
	if kind != nil {
		args = append(args, string(*kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}

func (s *TransactionStore) TopGifters(ctx context.Context, workspaceID string, kind domain.Kind, subjectID string, limit int) ([]domain.GifterTotal, error) {
	query := `
		SELECT gifter_id, COALESCE(SUM(quantity), 0) AS total
		FROM karma_transactions
		WHERE workspace_id = $1 AND kind = $2 AND subject_id = $3 AND expires_at > now()
		GROUP BY gifter_id
		ORDER BY total DESC, gifter_id`
	args := []any{workspaceID, string(kind), subjectID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top gifters: %w", err)
	}
	defer rows.Close()

	var out []domain.GifterTotal
	for rows.Next() {
		var row domain.GifterTotal
		if err := rows.Scan(&row.GifterID, &row.Total); err != nil {
			return nil, fmt.Errorf("failed to scan gifter row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gifter rows: %w", err)
	}
	return out, nil
}

func (s *TransactionStore) CountRecentByGifter(ctx context.Context, workspaceID, gifterID string, window time.Duration) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM karma_transactions
		WHERE workspace_id = $1 AND gifter_id = $2 AND created_at > now() - make_interval(secs => $3) AND expires_at > now()
	`, workspaceID, gifterID, window.Seconds()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent gifts: %w", err)
	}
	return count, nil
}

// HealthCheck reports database reachability for the readiness probe.
func (s *TransactionStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
