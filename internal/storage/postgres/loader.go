// Package postgres implements the transactional staging loader on pgx v5.
//
// One Load call runs a single transaction:
//
//	BEGIN
//	CREATE TEMP TABLE stg (...) ON COMMIT DROP        -- Idle -> StagingReady
//	COPY stg FROM STDIN  (or one batch of INSERTs)
//	INSERT INTO user_logins SELECT stg.*, CURRENT_DATE -- StagingReady -> Committed
//	COMMIT
//
// Any failure rolls the transaction back, so the permanent relation is left
// exactly as it was and the staging relation disappears with the
// transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"loginetl/internal/etlerr"
	"loginetl/internal/storage"
	"loginetl/pkg/records"
)

// InsertMode selects how staging rows are written.
type InsertMode string

const (
	// InsertCopy uses the COPY protocol (default).
	InsertCopy InsertMode = "copy"
	// InsertBatch queues one parameterised INSERT per row in a single
	// pgx.Batch round trip.
	InsertBatch InsertMode = "batch"
)

// State is the loader's position in the load protocol. It is logged on
// every transition.
type State string

const (
	StateIdle         State = "idle"
	StateStagingReady State = "staging_ready"
	StateCommitted    State = "committed"
	StateFailed       State = "failed"
)

// Config holds loader configuration.
type Config struct {
	DSN         string
	Schema      Schema
	InsertMode  InsertMode
	EnsureTable bool          // create the permanent relation if missing (dev only)
	PingTimeout time.Duration // bound on the initial connectivity check
}

// TxBeginner is the part of *pgxpool.Pool the loader needs. Beginning a
// transaction on the pool acquires a connection that is released when the
// transaction ends.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Loader is a Postgres-backed storage.Loader.
type Loader struct {
	db     TxBeginner
	schema Schema
	mode   InsertMode
	log    *zap.Logger
}

var _ storage.Loader = (*Loader)(nil)

// connPool is the part of *pgxpool.Pool that Open drives.
type connPool interface {
	TxBeginner
	execer
	Ping(ctx context.Context) error
	Close()
}

// newPool is a test hook; tests may replace it to avoid real connections.
var newPool = func(ctx context.Context, cfg *pgxpool.Config) (connPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// New wraps an existing TxBeginner. Zero-valued schema and mode fall back to
// DefaultSchema and InsertCopy.
func New(db TxBeginner, cfg Config, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	schema := cfg.Schema
	if len(schema.Columns) == 0 {
		schema = DefaultSchema()
	}
	mode := cfg.InsertMode
	if mode == "" {
		mode = InsertCopy
	}
	return &Loader{db: db, schema: schema, mode: mode, log: log.With(zap.String("component", "loader"))}
}

// Open connects a single-connection pool, verifies connectivity and returns
// the loader with its close function. The caller must call close on every
// exit path.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Loader, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, etlerr.Wrap(etlerr.KindSinkConnection, "parse dsn", err)
	}
	pcfg.MaxConns = 1

	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, nil, etlerr.Wrap(etlerr.KindSinkConnection, "create pool", err)
	}

	pingCtx := ctx
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, etlerr.Wrap(etlerr.KindSinkConnection, "ping", err)
	}

	l := New(pool, cfg, log)
	if cfg.EnsureTable {
		if err := l.ensureTable(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return l, pool.Close, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (l *Loader) ensureTable(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, l.schema.EnsureTableSQL()); err != nil {
		return etlerr.Wrap(etlerr.KindSchema, "ensure table "+l.schema.Table, err)
	}
	l.log.Info("ensured target table", zap.String("table", l.schema.Table))
	return nil
}

// Load stages recs and inserts them into the permanent relation in one
// transaction. Errors carry etlerr.SinkConnectionError, SchemaError,
// LoadError or UpsertError and leave the sink unchanged.
func (l *Loader) Load(ctx context.Context, recs []records.Record) (res storage.LoadResult, err error) {
	if len(recs) == 0 {
		return res, nil
	}

	state := StateIdle
	transition := func(next State) {
		l.log.Debug("load state", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		transition(StateFailed)
		err = etlerr.Wrap(etlerr.KindSinkConnection, "begin transaction", err)
		l.log.Error("could not load to target", zap.Error(err), zap.String("failed_at", string(StateIdle)))
		return res, err
	}
	defer func() {
		if state == StateCommitted {
			return
		}
		failedAt := state
		transition(StateFailed)
		// Roll back even when ctx is already canceled.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			l.log.Warn("rollback failed", zap.Error(rbErr))
		}
		l.log.Error("could not load to target", zap.Error(err), zap.String("failed_at", string(failedAt)))
	}()

	if _, err = tx.Exec(ctx, l.schema.CreateStagingSQL()); err != nil {
		return res, etlerr.Wrap(etlerr.KindSchema, "create staging table", withPgDetail(err))
	}
	transition(StateStagingReady)
	l.log.Info("created temporary table", zap.String("table", l.schema.StagingTable))

	if res.Staged, err = l.stage(ctx, tx, recs); err != nil {
		return res, etlerr.Wrap(etlerr.KindLoad, "insert staging rows", withPgDetail(err))
	}
	l.log.Info(fmt.Sprintf("loaded %d records to temp table", len(recs)),
		zap.Int("records", len(recs)), zap.Int64("staged", res.Staged), zap.String("mode", string(l.mode)))

	tag, err := tx.Exec(ctx, l.schema.UpsertSQL())
	if err != nil {
		return res, etlerr.Wrap(etlerr.KindUpsert, "insert into "+l.schema.Table, withPgDetail(err))
	}
	res.Upserted = tag.RowsAffected()

	if err = tx.Commit(ctx); err != nil {
		return res, etlerr.Wrap(etlerr.KindUpsert, "commit", withPgDetail(err))
	}
	transition(StateCommitted)
	l.log.Info(fmt.Sprintf("upserted %d records into target table", res.Upserted),
		zap.Int64("rows", res.Upserted), zap.String("table", l.schema.Table))

	return res, nil
}

func (l *Loader) stage(ctx context.Context, tx pgx.Tx, recs []records.Record) (int64, error) {
	cols := l.schema.ColumnNames()
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = r.Row(cols)
	}

	switch l.mode {
	case InsertBatch:
		b := &pgx.Batch{}
		sql := l.schema.InsertStagingSQL()
		for _, row := range rows {
			b.Queue(sql, row...)
		}
		br := tx.SendBatch(ctx, b)
		var n int64
		for range rows {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return n, err
			}
			n += tag.RowsAffected()
		}
		return n, br.Close()
	default:
		return tx.CopyFrom(ctx, pgx.Identifier{l.schema.StagingTable}, cols, pgx.CopyFromRows(rows))
	}
}

// withPgDetail folds the server's detail and SQLSTATE into the message when
// Postgres supplied them; the *pgconn.PgError stays reachable via errors.As.
func withPgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (detail: %s, sqlstate %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}
