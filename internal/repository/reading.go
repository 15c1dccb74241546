package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/voltgazer/internal/models"
)

// MaxReadingsPerQuery 单次查询返回的最大条数
const MaxReadingsPerQuery = 100

// ReadingRepository 电压读数仓库
type ReadingRepository struct {
	db *DB
}

// NewReadingRepository 创建读数仓库
func NewReadingRepository(db *DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// InsertBatch 在一个事务内按顺序写入全部读数，并回填 ID
//
// 任一行失败时整个事务回滚，调用方看不到部分写入。
func (r *ReadingRepository) InsertBatch(ctx context.Context, readings []*models.Reading) error {
	if err := r.db.ready(ctx); err != nil {
		return err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify("begin insert transaction", err)
	}
	// Commit 之后 Rollback 为空操作
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO battery_readings (battery_id, voltage, timestamp)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	batch := &pgx.Batch{}
	for _, reading := range readings {
		batch.Queue(query, reading.BatteryID, reading.Voltage, reading.Timestamp)
	}

	results := tx.SendBatch(ctx, batch)
	for i, reading := range readings {
		if err := results.QueryRow().Scan(&reading.ID); err != nil {
			results.Close()
			return classify(fmt.Sprintf("insert reading %d", i), err)
		}
	}
	if err := results.Close(); err != nil {
		return classify("close insert batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit insert transaction", err)
	}
	return nil
}

// QueryRange 按时间范围查询读数，按 timestamp 倒序
func (r *ReadingRepository) QueryRange(ctx context.Context, filter models.ReadingFilter) ([]*models.Reading, error) {
	if err := r.db.ready(ctx); err != nil {
		return nil, err
	}

	query, args := buildRangeQuery(filter)
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("query readings", err)
	}
	defer rows.Close()

	readings := make([]*models.Reading, 0)
	for rows.Next() {
		reading := &models.Reading{}
		err := rows.Scan(
			&reading.ID,
			&reading.BatteryID,
			&reading.Voltage,
			&reading.Timestamp,
		)
		if err != nil {
			return nil, classify("scan reading", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate readings", err)
	}

	return readings, nil
}

// buildRangeQuery 拼接查询语句；未给出的边界不加条件
func buildRangeQuery(filter models.ReadingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Start != nil {
		args = append(args, *filter.Start)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxReadingsPerQuery {
		limit = MaxReadingsPerQuery
	}
	args = append(args, limit)

	var sb strings.Builder
	sb.WriteString("SELECT id, battery_id, voltage, timestamp FROM battery_readings")
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString(fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d", len(args)))

	return sb.String(), args
}
