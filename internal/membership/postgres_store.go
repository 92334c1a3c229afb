package membership

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"membersync/internal/constants"
	"membersync/pkg/metrics"
)

// MembershipTable names a join table and its two ID columns.
type MembershipTable struct {
	Table           string
	ContainerColumn string
	EntityColumn    string
}

var (
	CollectionProducts = MembershipTable{
		Table:           "collection_products",
		ContainerColumn: "collection_id",
		EntityColumn:    "product_id",
	}
	SegmentCustomers = MembershipTable{
		Table:           "segment_customers",
		ContainerColumn: "segment_id",
		EntityColumn:    "customer_id",
	}
)

// PostgresStore keeps container membership in a join table with a position
// column preserving evaluation order.
type PostgresStore struct {
	db    *sql.DB
	table MembershipTable
}

func NewPostgresStore(db *sql.DB, table MembershipTable) *PostgresStore {
	return &PostgresStore{db: db, table: table}
}

// ReplaceMembers deletes the current rows and inserts ids in a single
// transaction. Readers see either the old or the new membership.
func (s *PostgresStore) ReplaceMembers(ctx context.Context, containerID string, ids []string) (err error) {
	defer s.observe("replace_members", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	del := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, s.table.Table, s.table.ContainerColumn)
	if _, err = tx.ExecContext(ctx, del, containerID); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}

	if len(ids) > 0 {
		ins := fmt.Sprintf(`
			INSERT INTO %s (%s, %s, position)
			SELECT $1, member.id, member.ord
			FROM unnest($2::text[]) WITH ORDINALITY AS member(id, ord)
			ON CONFLICT DO NOTHING
		`, s.table.Table, s.table.ContainerColumn, s.table.EntityColumn)
		if _, err = tx.ExecContext(ctx, ins, containerID, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to insert members: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit members: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, containerID string) (ids []string, err error) {
	defer s.observe("list_members", time.Now(), &err)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY position ASC`,
		s.table.EntityColumn, s.table.Table, s.table.ContainerColumn)

	rows, err := s.db.QueryContext(ctx, query, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	ids = make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return ids, nil
}

// AddMembers appends ids after the current last position. Existing members
// keep their place.
func (s *PostgresStore) AddMembers(ctx context.Context, containerID string, ids []string) (added int, err error) {
	defer s.observe("add_members", time.Now(), &err)

	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, %[3]s, position)
		SELECT $1, member.id,
		       COALESCE((SELECT MAX(position) FROM %[1]s WHERE %[2]s = $1), 0) + member.ord
		FROM unnest($2::text[]) WITH ORDINALITY AS member(id, ord)
		ON CONFLICT DO NOTHING
	`, s.table.Table, s.table.ContainerColumn, s.table.EntityColumn)

	res, err := s.db.ExecContext(ctx, query, containerID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to add members: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Count(ctx context.Context, containerID string) (count int, err error) {
	defer s.observe("count_members", time.Now(), &err)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, s.table.Table, s.table.ContainerColumn)
	if err := s.db.QueryRowContext(ctx, query, containerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) observe(operation string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery(constants.ServiceName, "postgres", s.table.Table+"."+operation, start, *err)
}
