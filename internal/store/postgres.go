package store

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kgm-ocak/ocak-map/internal/db"
	"github.com/kgm-ocak/ocak-map/internal/model"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	d       dialect
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op; the caller
// owns the pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return newPostgresStore(pool, nil)
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		closeFn: closeFn,
		d:       postgresDialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Quarries ---

func (s *PostgresStore) ListQuarries(ctx context.Context) ([]model.Quarry, error) {
	return s.queryQuarries(ctx, s.d.listQuarries(), "list quarries")
}

func (s *PostgresStore) SearchQuarries(ctx context.Context, query string) ([]model.Quarry, error) {
	return s.queryQuarries(ctx, s.d.searchQuarries(query), "search quarries")
}

func (s *PostgresStore) queryQuarries(ctx context.Context, b squirrel.SelectBuilder, op string) ([]model.Quarry, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: build %s", op)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	quarries := []model.Quarry{}
	for rows.Next() {
		q, err := scanQuarry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan quarry")
		}
		quarries = append(quarries, q)
	}
	return quarries, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func (s *PostgresStore) GetQuarry(ctx context.Context, id int64) (*model.Quarry, error) {
	sql, args, err := s.d.getQuarry(id).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get quarry")
	}
	q, err := scanQuarry(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, pgError(err, "postgres: get quarry %d", id)
	}
	return &q, nil
}

func (s *PostgresStore) CreateQuarry(ctx context.Context, in model.QuarryInput) (*model.Quarry, error) {
	now := s.now()
	sql, args, err := s.d.insertQuarry(in, now).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build insert quarry")
	}

	var id int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return nil, pgError(err, "postgres: insert quarry")
	}
	return quarryFromInput(id, in, now), nil
}

// CreateQuarries writes every record in one transaction. Either all rows
// are committed or none are.
func (s *PostgresStore) CreateQuarries(ctx context.Context, in []model.QuarryInput) (int, error) {
	if len(in) == 0 {
		return 0, nil
	}
	stmts, err := s.d.insertQuarries(in, s.now())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build bulk insert")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var created int64
	for _, st := range stmts {
		tag, err := tx.Exec(ctx, st.SQL, st.Args...)
		if err != nil {
			return 0, pgError(err, "postgres: bulk insert quarries")
		}
		created += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert: commit tx")
	}
	return int(created), nil
}

func (s *PostgresStore) UpdateQuarry(ctx context.Context, id int64, patch model.QuarryPatch) (*model.Quarry, error) {
	sql, args, err := s.d.updateQuarry(id, patch, s.now()).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build update quarry")
	}
	q, err := scanQuarry(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, pgError(err, "postgres: update quarry %d", id)
	}
	return &q, nil
}

func (s *PostgresStore) DeleteQuarry(ctx context.Context, id int64) error {
	return s.DeleteQuarries(ctx, []int64{id})
}

// DeleteQuarries removes the given ids in a single statement. Ids that do
// not exist are ignored.
func (s *PostgresStore) DeleteQuarries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	sql, args, err := s.d.deleteQuarries(ids).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build delete quarries")
	}
	_, err = s.pool.Exec(ctx, sql, args...)
	return eris.Wrapf(err, "postgres: delete %d quarries", len(ids))
}

func (s *PostgresStore) CountQuarries(ctx context.Context) (int, error) {
	sql, args, err := s.d.countQuarries().ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build count quarries")
	}
	var n int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count quarries")
	}
	return int(n), nil
}

// --- Provinces ---

func (s *PostgresStore) ListProvinces(ctx context.Context) ([]model.Province, error) {
	sql, args, err := s.d.listProvinces().ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list provinces")
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provinces")
	}
	defer rows.Close()

	provinces := []model.Province{}
	for rows.Next() {
		p, err := scanProvince(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan province")
		}
		provinces = append(provinces, p)
	}
	return provinces, eris.Wrap(rows.Err(), "postgres: list provinces iterate")
}

func (s *PostgresStore) GetProvinceByName(ctx context.Context, name string) (*model.Province, error) {
	sql, args, err := s.d.provinceByName(name).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get province")
	}
	p, err := scanProvince(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, pgError(err, "postgres: get province %q", name)
	}
	return &p, nil
}

func (s *PostgresStore) UpsertProvinces(ctx context.Context, provinces []model.Province) (int, error) {
	stmts, err := s.d.upsertProvinces(provinces)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build upsert provinces")
	}
	if len(stmts) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert provinces: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var n int64
	for _, st := range stmts {
		tag, err := tx.Exec(ctx, st.SQL, st.Args...)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: upsert provinces")
		}
		n += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: upsert provinces: commit tx")
	}
	return int(n), nil
}

// --- Users ---

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx, s.d.listUsers(), "list users")
}

func (s *PostgresStore) ListPendingUsers(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx, s.d.listPendingUsers(), "list pending users")
}

func (s *PostgresStore) queryUsers(ctx context.Context, b squirrel.SelectBuilder, op string) ([]model.User, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: build %s", op)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan user")
		}
		users = append(users, u)
	}
	return users, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, squirrel.Eq{"id": id})
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, squirrel.Eq{"email": email})
}

func (s *PostgresStore) getUser(ctx context.Context, where squirrel.Eq) (*model.User, error) {
	sql, args, err := s.d.getUser(where).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get user")
	}
	u, err := scanUser(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, pgError(err, "postgres: get user")
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	now := s.now()
	sql, args, err := s.d.insertUser(u, now).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build insert user")
	}
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&u.ID); err != nil {
		return nil, pgError(err, "postgres: insert user %s", u.Email)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return &u, nil
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, id int64, role model.Role) error {
	return s.updateUser(ctx, id, map[string]any{"role": string(role)}, "update user role")
}

func (s *PostgresStore) ApproveUser(ctx context.Context, id int64) error {
	return s.updateUser(ctx, id, map[string]any{"approved": true}, "approve user")
}

func (s *PostgresStore) TouchLastSignedIn(ctx context.Context, id int64, at time.Time) error {
	return s.updateUser(ctx, id, map[string]any{"last_signed_in": at}, "touch last signed in")
}

func (s *PostgresStore) updateUser(ctx context.Context, id int64, set map[string]any, op string) error {
	set["updated_at"] = s.now()
	sql, args, err := s.d.updateUser(id, set).ToSql()
	if err != nil {
		return eris.Wrapf(err, "postgres: build %s", op)
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %d", op, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: %s: user %d", op, id)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id int64) error {
	sql, args, err := s.d.deleteUser(id).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build delete user")
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete user %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete user %d", id)
	}
	return nil
}

// pgError maps driver errors onto the store sentinels.
func pgError(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return eris.Wrapf(ErrConflict, format+": %s", append(args, pgErr.ConstraintName)...)
	}
	return eris.Wrapf(err, format, args...)
}

func quarryFromInput(id int64, in model.QuarryInput, now time.Time) *model.Quarry {
	return &model.Quarry{
		ID:          id,
		Name:        in.Name,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		ImageURL:    in.ImageURL,
		Description: in.Description,
		Province:    in.Province,
		District:    in.District,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
