package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool is the slice of *pgxpool.Pool the order store queries through;
// pgxmock pools satisfy it as well.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	pool DBPool
}

func NewPostgresStore(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectColumns = `order_id, item, qty, student_id, status, created_at`

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (order_id, item, qty, student_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.OrderID, rec.Item, rec.Qty, rec.StudentID, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM orders WHERE order_id = $1`, orderID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("select order: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM orders ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// UpdateStatus applies the transition in a single conditional UPDATE. When
// no row matches, the current row tells a missing order apart from a
// rejected transition.
func (s *PostgresStore) UpdateStatus(ctx context.Context, orderID string, status Status) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE order_id = $1 AND status = ANY($3)
		RETURNING `+selectColumns,
		orderID, string(status), sourcesFor(status))
	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("update order status: %w", err)
	}

	current, err := s.Get(ctx, orderID)
	if err != nil {
		return Record{}, err
	}
	return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		status string
	)
	if err := row.Scan(&rec.OrderID, &rec.Item, &rec.Qty, &rec.StudentID, &status, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}
