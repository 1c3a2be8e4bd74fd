package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"golang.org/x/text/cases"

	"github.com/kgm-ocak/ocak-map/internal/db"
	"github.com/kgm-ocak/ocak-map/internal/model"
)

const (
	quarriesTable  = "quarries"
	provincesTable = "provinces"
	usersTable     = "users"
)

// quarryInsertColumns is the column order of quarryRow.
var quarryInsertColumns = []string{
	"name", "latitude", "longitude", "image_url", "description",
	"province", "district", "created_at", "updated_at",
}

var userColumns = []string{
	"id", "email", "name", "password_hash", "role", "approved",
	"created_at", "updated_at", "last_signed_in",
}

// dialect holds what differs between the Postgres and SQLite schemas. Both
// stores build their SQL through it so the statements stay in lockstep.
type dialect struct {
	placeholder squirrel.PlaceholderFormat
	// coordCast renders NUMERIC coordinates as text so the stored digits
	// come back unchanged.
	coordCast string
	like      string
	// fold names a SQL function that case-folds its argument. Empty when
	// the LIKE operator already ignores case beyond ASCII.
	fold string
}

var (
	postgresDialect = dialect{placeholder: squirrel.Dollar, coordCast: "::text", like: "ILIKE"}
	sqliteDialect   = dialect{placeholder: squirrel.Question, like: "LIKE", fold: sqliteFoldFunc}
)

func (d dialect) sb() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.placeholder)
}

func (d dialect) quarryColumns() []string {
	return []string{
		"id", "name", "latitude" + d.coordCast, "longitude" + d.coordCast,
		"image_url", "description", "province", "district", "created_at", "updated_at",
	}
}

func (d dialect) provinceColumns() []string {
	return []string{"id", "name", "latitude" + d.coordCast, "longitude" + d.coordCast}
}

func (d dialect) listQuarries() squirrel.SelectBuilder {
	return d.sb().Select(d.quarryColumns()...).From(quarriesTable).OrderBy("id")
}

func (d dialect) getQuarry(id int64) squirrel.SelectBuilder {
	return d.sb().Select(d.quarryColumns()...).From(quarriesTable).Where(squirrel.Eq{"id": id})
}

// searchQuarries matches query as a case-insensitive substring of name,
// province or district. LIKE wildcards in query match literally.
func (d dialect) searchQuarries(query string) squirrel.SelectBuilder {
	pattern := "%" + escapeLike(query) + "%"
	if d.fold != "" {
		pattern = foldCase(pattern)
	}
	match := func(col string) squirrel.Sqlizer {
		if d.fold != "" {
			col = d.fold + "(" + col + ")"
		}
		return squirrel.Expr(fmt.Sprintf(`%s %s ? ESCAPE '\'`, col, d.like), pattern)
	}
	return d.listQuarries().Where(squirrel.Or{match("name"), match("province"), match("district")})
}

func (d dialect) insertQuarry(in model.QuarryInput, now time.Time) squirrel.InsertBuilder {
	return d.sb().Insert(quarriesTable).
		Columns(quarryInsertColumns...).
		Values(quarryRow(in, now)...).
		Suffix("RETURNING id")
}

func (d dialect) insertQuarries(in []model.QuarryInput, now time.Time) ([]db.Statement, error) {
	rows := make([][]any, len(in))
	for i := range in {
		rows[i] = quarryRow(in[i], now)
	}
	return db.BuildInserts(db.InsertConfig{
		Table:       quarriesTable,
		Columns:     quarryInsertColumns,
		Placeholder: d.placeholder,
	}, rows)
}

func (d dialect) updateQuarry(id int64, p model.QuarryPatch, now time.Time) squirrel.UpdateBuilder {
	b := d.sb().Update(quarriesTable)
	set := func(col string, v *string) {
		if v != nil {
			b = b.Set(col, *v)
		}
	}
	set("name", p.Name)
	set("latitude", p.Latitude)
	set("longitude", p.Longitude)
	set("image_url", p.ImageURL)
	set("description", p.Description)
	set("province", p.Province)
	set("district", p.District)
	return b.Set("updated_at", now).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(d.quarryColumns(), ", "))
}

func (d dialect) deleteQuarries(ids []int64) squirrel.DeleteBuilder {
	return d.sb().Delete(quarriesTable).Where(squirrel.Eq{"id": ids})
}

func (d dialect) countQuarries() squirrel.SelectBuilder {
	return d.sb().Select("count(*)").From(quarriesTable)
}

func (d dialect) listProvinces() squirrel.SelectBuilder {
	return d.sb().Select(d.provinceColumns()...).From(provincesTable).OrderBy("name")
}

func (d dialect) provinceByName(name string) squirrel.SelectBuilder {
	return d.sb().Select(d.provinceColumns()...).From(provincesTable).Where(squirrel.Eq{"name": name})
}

func (d dialect) upsertProvinces(provinces []model.Province) ([]db.Statement, error) {
	rows := make([][]any, len(provinces))
	for i, p := range provinces {
		rows[i] = []any{p.Name, p.Latitude, p.Longitude}
	}
	return db.BuildInserts(db.InsertConfig{
		Table:        provincesTable,
		Columns:      []string{"name", "latitude", "longitude"},
		ConflictKeys: []string{"name"},
		Placeholder:  d.placeholder,
	}, rows)
}

func (d dialect) listUsers() squirrel.SelectBuilder {
	return d.sb().Select(userColumns...).From(usersTable).OrderBy("id")
}

func (d dialect) listPendingUsers() squirrel.SelectBuilder {
	return d.sb().Select(userColumns...).From(usersTable).
		Where(squirrel.Eq{"approved": false}).
		OrderBy("created_at", "id")
}

func (d dialect) getUser(where squirrel.Eq) squirrel.SelectBuilder {
	return d.sb().Select(userColumns...).From(usersTable).Where(where)
}

func (d dialect) insertUser(u model.User, now time.Time) squirrel.InsertBuilder {
	return d.sb().Insert(usersTable).
		Columns("email", "name", "password_hash", "role", "approved", "created_at", "updated_at").
		Values(u.Email, u.Name, u.PasswordHash, string(u.Role), u.Approved, now, now).
		Suffix("RETURNING id")
}

func (d dialect) updateUser(id int64, set map[string]any) squirrel.UpdateBuilder {
	return d.sb().Update(usersTable).SetMap(set).Where(squirrel.Eq{"id": id})
}

func (d dialect) deleteUser(id int64) squirrel.DeleteBuilder {
	return d.sb().Delete(usersTable).Where(squirrel.Eq{"id": id})
}

func quarryRow(in model.QuarryInput, now time.Time) []any {
	return []any{
		in.Name, in.Latitude, in.Longitude, in.ImageURL, in.Description,
		in.Province, in.District, now, now,
	}
}

// foldCase applies Unicode simple case folding, so "Şanlıurfa" and
// "şanlıurfa" compare equal.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// escapeLike escapes the LIKE metacharacters with backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// rowScanner is satisfied by pgx.Row(s) and *sql.Row(s).
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuarry(r rowScanner) (model.Quarry, error) {
	var q model.Quarry
	err := r.Scan(&q.ID, &q.Name, &q.Latitude, &q.Longitude, &q.ImageURL,
		&q.Description, &q.Province, &q.District, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

func scanProvince(r rowScanner) (model.Province, error) {
	var p model.Province
	err := r.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude)
	return p, err
}

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	err := r.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Approved,
		&u.CreatedAt, &u.UpdatedAt, &u.LastSignedIn)
	return u, err
}
