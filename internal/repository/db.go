package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/langchou/voltgazer/internal/apperr"
	"github.com/langchou/voltgazer/internal/metrics"
	"github.com/langchou/voltgazer/internal/retry"
	"github.com/langchou/voltgazer/internal/state"
)

// 启动阶段建表重试参数
const (
	BootstrapMaxAttempts = 5
	BootstrapBackoffUnit = time.Second
)

// schemaLockKey EnsureSchema 使用的 advisory lock 键
const schemaLockKey int64 = 0x766f6c74

var knownStates = []string{state.StateStarting, state.StateReady, state.StateDegraded, state.StateClosed}

// DB 数据库连接池封装
type DB struct {
	Pool    *pgxpool.Pool
	logger  *zap.Logger
	machine *state.Machine
}

// New 创建连接池；不等待数据库可达，连通性由 Bootstrap 负责
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	db := &DB{Pool: pool, logger: logger}
	db.machine = state.NewMachine(func(from, to string) {
		logger.Info("Storage state changed", zap.String("from", from), zap.String("to", to))
		metrics.SetStorageState(to, knownStates...)
	})
	metrics.SetStorageState(state.StateStarting, knownStates...)

	return db, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.machine.TryTrigger(state.EventClose)
	db.Pool.Close()
}

// State 当前存储状态
func (db *DB) State() state.Snapshot {
	return db.machine.Snapshot()
}

// Ping 检查数据库连通性
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// EnsureSchema 幂等建表
//
// 使用 CREATE ... IF NOT EXISTS，并在事务内持有 advisory lock，
// 避免多个实例同时启动时 catalog 冲突。
func (db *DB) EnsureSchema(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return classify("begin schema transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return classify("acquire schema lock", err)
	}
	if _, err := tx.Exec(ctx, schemaCreateReadings); err != nil {
		return classify("create readings table", err)
	}
	if _, err := tx.Exec(ctx, schemaIndexReadingsTimestamp); err != nil {
		return classify("create readings index", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit schema transaction", err)
	}
	return nil
}

// Bootstrap 启动时按指数退避重试建表
//
// 重试耗尽后只记录错误并进入 degraded 状态，不阻止进程启动；
// 之后的请求会在访问存储前再尝试一次建表。
func (db *DB) Bootstrap(ctx context.Context, policy retry.Policy) {
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			db.logger.Warn("Database not ready, will retry",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
	}

	err := retry.Do(ctx, policy, db.EnsureSchema)
	if err != nil {
		db.logger.Error("Failed to initialize database, continuing in degraded mode", zap.Error(err))
		db.machine.TryTrigger(state.EventRetriesExhausted)
		return
	}

	db.logger.Info("Database schema ensured")
	db.machine.TryTrigger(state.EventSchemaReady)
}

// DefaultBootstrapPolicy 5 次尝试，间隔 2^attempt 秒
func DefaultBootstrapPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: BootstrapMaxAttempts,
		Backoff:     retry.Exponential(BootstrapBackoffUnit),
	}
}

// ready 请求访问存储前调用；degraded 状态下尝试一次恢复，不重试
func (db *DB) ready(ctx context.Context) error {
	switch db.machine.CurrentState() {
	case state.StateReady:
		return nil
	case state.StateClosed:
		return &apperr.StorageUnavailableError{Op: "ready", Err: errors.New("connection pool closed")}
	case state.StateStarting:
		return &apperr.StorageUnavailableError{Op: "ready", Err: errors.New("storage is still starting")}
	}

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	if db.machine.TryTrigger(state.EventRecover) {
		db.logger.Info("Database recovered from degraded mode")
	}
	return nil
}

// classify 将驱动错误归入 apperr 分类
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return &apperr.ConstraintViolationError{
			Constraint: pgErr.ConstraintName,
			Err:        fmt.Errorf("%s: %w", op, err),
		}
	}
	return &apperr.StorageUnavailableError{Op: op, Err: err}
}

// 数据库建表 SQL
const schemaCreateReadings = `
CREATE TABLE IF NOT EXISTS battery_readings (
    id BIGSERIAL PRIMARY KEY,
    battery_id TEXT NOT NULL,
    voltage DOUBLE PRECISION NOT NULL,
    timestamp TIMESTAMP WITHOUT TIME ZONE NOT NULL
);
`

const schemaIndexReadingsTimestamp = `
CREATE INDEX IF NOT EXISTS idx_battery_readings_timestamp ON battery_readings(timestamp DESC, id DESC);
`
