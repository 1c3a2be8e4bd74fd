package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kgm-ocak/ocak-map/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

// sqliteFoldFunc is the SQL name of foldCase on SQLite connections. SQLite's
// LIKE and lower() only fold ASCII letters.
const sqliteFoldFunc = "ocak_fold"

var (
	registerFoldOnce sync.Once
	registerFoldErr  error
)

// registerFold makes sqliteFoldFunc available to every connection opened
// afterwards. Registration is process-wide and may only happen once.
func registerFold() error {
	registerFoldOnce.Do(func() {
		registerFoldErr = sqlite.RegisterDeterministicScalarFunction(sqliteFoldFunc, 1,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case string:
					return foldCase(v), nil
				case []byte:
					return foldCase(string(v)), nil
				default:
					return v, nil
				}
			})
	})
	return eris.Wrap(registerFoldErr, "sqlite: register fold function")
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if err := registerFold(); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps the pragmas below in effect for every query.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{
		db:  conn,
		d:   sqliteDialect,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrateSQLite(ctx, s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Quarries ---

func (s *SQLiteStore) ListQuarries(ctx context.Context) ([]model.Quarry, error) {
	return s.queryQuarries(ctx, s.d.listQuarries(), "list quarries")
}

func (s *SQLiteStore) SearchQuarries(ctx context.Context, query string) ([]model.Quarry, error) {
	return s.queryQuarries(ctx, s.d.searchQuarries(query), "search quarries")
}

func (s *SQLiteStore) queryQuarries(ctx context.Context, b squirrel.SelectBuilder, op string) ([]model.Quarry, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: build %s", op)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	quarries := []model.Quarry{}
	for rows.Next() {
		q, err := scanQuarry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quarry")
		}
		quarries = append(quarries, q)
	}
	return quarries, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) GetQuarry(ctx context.Context, id int64) (*model.Quarry, error) {
	query, args, err := s.d.getQuarry(id).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get quarry")
	}
	q, err := scanQuarry(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, sqliteError(err, "sqlite: get quarry %d", id)
	}
	return &q, nil
}

func (s *SQLiteStore) CreateQuarry(ctx context.Context, in model.QuarryInput) (*model.Quarry, error) {
	now := s.now()
	query, args, err := s.d.insertQuarry(in, now).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build insert quarry")
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, sqliteError(err, "sqlite: insert quarry")
	}
	return quarryFromInput(id, in, now), nil
}

// CreateQuarries writes every record in one transaction. Either all rows
// are committed or none are.
func (s *SQLiteStore) CreateQuarries(ctx context.Context, in []model.QuarryInput) (int, error) {
	if len(in) == 0 {
		return 0, nil
	}
	stmts, err := s.d.insertQuarries(in, s.now())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build bulk insert")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var created int64
	for _, st := range stmts {
		res, err := tx.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return 0, sqliteError(err, "sqlite: bulk insert quarries")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: bulk insert rows affected")
		}
		created += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert: commit tx")
	}
	return int(created), nil
}

func (s *SQLiteStore) UpdateQuarry(ctx context.Context, id int64, patch model.QuarryPatch) (*model.Quarry, error) {
	query, args, err := s.d.updateQuarry(id, patch, s.now()).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build update quarry")
	}
	q, err := scanQuarry(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, sqliteError(err, "sqlite: update quarry %d", id)
	}
	return &q, nil
}

func (s *SQLiteStore) DeleteQuarry(ctx context.Context, id int64) error {
	return s.DeleteQuarries(ctx, []int64{id})
}

// DeleteQuarries removes the given ids in a single statement. Ids that do
// not exist are ignored.
func (s *SQLiteStore) DeleteQuarries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := s.d.deleteQuarries(ids).ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build delete quarries")
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return eris.Wrapf(err, "sqlite: delete %d quarries", len(ids))
}

func (s *SQLiteStore) CountQuarries(ctx context.Context) (int, error) {
	query, args, err := s.d.countQuarries().ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build count quarries")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count quarries")
	}
	return n, nil
}

// --- Provinces ---

func (s *SQLiteStore) ListProvinces(ctx context.Context) ([]model.Province, error) {
	query, args, err := s.d.listProvinces().ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list provinces")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provinces")
	}
	defer rows.Close() //nolint:errcheck

	provinces := []model.Province{}
	for rows.Next() {
		p, err := scanProvince(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan province")
		}
		provinces = append(provinces, p)
	}
	return provinces, eris.Wrap(rows.Err(), "sqlite: list provinces iterate")
}

func (s *SQLiteStore) GetProvinceByName(ctx context.Context, name string) (*model.Province, error) {
	query, args, err := s.d.provinceByName(name).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get province")
	}
	p, err := scanProvince(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, sqliteError(err, "sqlite: get province %q", name)
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertProvinces(ctx context.Context, provinces []model.Province) (int, error) {
	stmts, err := s.d.upsertProvinces(provinces)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build upsert provinces")
	}
	if len(stmts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert provinces: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, st := range stmts {
		res, err := tx.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert provinces")
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert provinces: commit tx")
	}
	return int(n), nil
}

// --- Users ---

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx, s.d.listUsers(), "list users")
}

func (s *SQLiteStore) ListPendingUsers(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx, s.d.listPendingUsers(), "list pending users")
}

func (s *SQLiteStore) queryUsers(ctx context.Context, b squirrel.SelectBuilder, op string) ([]model.User, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: build %s", op)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan user")
		}
		users = append(users, u)
	}
	return users, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, squirrel.Eq{"id": id})
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, squirrel.Eq{"email": email})
}

func (s *SQLiteStore) getUser(ctx context.Context, where squirrel.Eq) (*model.User, error) {
	query, args, err := s.d.getUser(where).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get user")
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, sqliteError(err, "sqlite: get user")
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	now := s.now()
	query, args, err := s.d.insertUser(u, now).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build insert user")
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID); err != nil {
		return nil, sqliteError(err, "sqlite: insert user %s", u.Email)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return &u, nil
}

func (s *SQLiteStore) UpdateUserRole(ctx context.Context, id int64, role model.Role) error {
	return s.updateUser(ctx, id, map[string]any{"role": string(role)}, "update user role")
}

func (s *SQLiteStore) ApproveUser(ctx context.Context, id int64) error {
	return s.updateUser(ctx, id, map[string]any{"approved": true}, "approve user")
}

func (s *SQLiteStore) TouchLastSignedIn(ctx context.Context, id int64, at time.Time) error {
	return s.updateUser(ctx, id, map[string]any{"last_signed_in": at.UTC()}, "touch last signed in")
}

func (s *SQLiteStore) updateUser(ctx context.Context, id int64, set map[string]any, op string) error {
	set["updated_at"] = s.now()
	query, args, err := s.d.updateUser(id, set).ToSql()
	if err != nil {
		return eris.Wrapf(err, "sqlite: build %s", op)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %d", op, id)
	}
	return checkRowsAffected(res, op, id)
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	query, args, err := s.d.deleteUser(id).ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build delete user")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete user %d", id)
	}
	return checkRowsAffected(res, "delete user", id)
}

func checkRowsAffected(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s: user %d", op, id)
	}
	return nil
}

// sqliteError maps driver errors onto the store sentinels.
func sqliteError(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return eris.Wrapf(ErrConflict, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}
