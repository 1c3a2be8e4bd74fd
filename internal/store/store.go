package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kgm-ocak/ocak-map/internal/model"
)

var (
	// ErrNotFound is returned when a record looked up by key does not exist.
	ErrNotFound = eris.New("not found")

	// ErrConflict is returned when a write violates a unique key.
	ErrConflict = eris.New("conflict")
)

// Store defines the persistence interface for quarries, provinces and users.
//
// Coordinates arrive already validated and formatted as fixed-precision
// decimal text; the store writes them as given.
type Store interface {
	// Quarries
	ListQuarries(ctx context.Context) ([]model.Quarry, error)
	GetQuarry(ctx context.Context, id int64) (*model.Quarry, error)
	SearchQuarries(ctx context.Context, query string) ([]model.Quarry, error)
	CreateQuarry(ctx context.Context, in model.QuarryInput) (*model.Quarry, error)
	CreateQuarries(ctx context.Context, in []model.QuarryInput) (int, error)
	UpdateQuarry(ctx context.Context, id int64, patch model.QuarryPatch) (*model.Quarry, error)
	DeleteQuarry(ctx context.Context, id int64) error
	DeleteQuarries(ctx context.Context, ids []int64) error
	CountQuarries(ctx context.Context) (int, error)

	// Provinces
	ListProvinces(ctx context.Context) ([]model.Province, error)
	GetProvinceByName(ctx context.Context, name string) (*model.Province, error)
	UpsertProvinces(ctx context.Context, provinces []model.Province) (int, error)

	// Users
	ListUsers(ctx context.Context) ([]model.User, error)
	ListPendingUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	UpdateUserRole(ctx context.Context, id int64, role model.Role) error
	ApproveUser(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, id int64) error
	TouchLastSignedIn(ctx context.Context, id int64, at time.Time) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
