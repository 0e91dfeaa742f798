// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

type Repository interface {
	// Upsert inserts the user or refreshes email and name. Role is only
	// set on insert.
	Upsert(ctx context.Context, user *User) error
	// Provision inserts a bare row for id unless one exists and returns the
	// stored role. role is used only for the insert.
	Provision(ctx context.Context, id string, role principal.Role) (principal.Role, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateRole(ctx context.Context, id string, role principal.Role) (*User, error)
	List(ctx context.Context, params ListUsersParams) ([]Account, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, name, role, created_at, updated_at`

func (r *repository) Upsert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    updated_at = NOW()
		RETURNING ` + userColumns

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
	)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("upsert user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

const provisionQuery = `
	WITH inserted AS (
		INSERT INTO users (id, role) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
		RETURNING role
	)
	SELECT role FROM inserted
	UNION ALL
	SELECT role FROM users WHERE id = $1
	LIMIT 1`

func (r *repository) Provision(
	ctx context.Context,
	id string,
	role principal.Role,
) (principal.Role, error) {
	var stored principal.Role
	err := r.db.GetContext(ctx, &stored, provisionQuery, id, role)
	if errors.Is(err, sql.ErrNoRows) {
		// A concurrent first request committed the row after this
		// statement's snapshot was taken. It is visible now.
		err = r.db.GetContext(ctx, &stored, provisionQuery, id, role)
	}
	if err != nil {
		return "", fmt.Errorf("provision user: %w", err)
	}
	return stored, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) UpdateRole(
	ctx context.Context,
	id string,
	role principal.Role,
) (*User, error) {
	query := `
		UPDATE users
		SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var user User
	err := r.db.GetContext(ctx, &user, query, id, role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update role: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	return &user, nil
}

const accountQuery = `
	SELECT u.id, u.email, u.name, u.role, u.created_at, u.updated_at,
	       e.plan, e.status AS entitlement_status, e.expires_at,
	       COALESCE(p.xp, 0) AS xp
	FROM users u
	LEFT JOIN entitlements e ON e.user_id = u.id
	LEFT JOIN user_progress p ON p.user_id = u.id`

// effectivePlanSQL repeats the resolver's rules so listings filter on the
// plan a user actually has today.
const effectivePlanSQL = `
	CASE
		WHEN u.role = 'ADMIN' THEN 'ADMIN'
		WHEN e.status = 'ACTIVE' AND (e.expires_at IS NULL OR e.expires_at > NOW())
			THEN e.plan
		ELSE 'FREE'
	END`

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]Account, int, error) {
	params.Normalize()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Search != "" {
		p := arg("%" + escapeLike(params.Search) + "%")
		where = append(where, "(u.email ILIKE "+p+" OR u.name ILIKE "+p+")")
	}
	if params.Role != "" {
		where = append(where, "u.role = "+arg(params.Role))
	}
	if params.Plan != "" {
		where = append(where, effectivePlanSQL+" = "+arg(params.Plan))
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM users u
		LEFT JOIN entitlements e ON e.user_id = u.id` + filter
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := accountQuery + filter +
		" ORDER BY u.created_at DESC, u.id" +
		" LIMIT " + arg(params.PageSize) + " OFFSET " + arg(params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return accounts, total, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
