// AngelaMos | 2026
// repository.go

package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type Repository interface {
	UserExists(ctx context.Context, userID string) (bool, error)

	Get(ctx context.Context, userID string) (*Entitlement, error)
	GetForUpdate(ctx context.Context, userID string) (*Entitlement, error)
	Upsert(ctx context.Context, in UpsertParams) (*Entitlement, error)
	MarkRevoked(ctx context.Context, userID, reason string) (*Entitlement, error)

	CreateCode(ctx context.Context, code *AccessCode) error
	GetCodeByHashForUpdate(ctx context.Context, hash string) (*AccessCode, error)
	InsertRedemption(ctx context.Context, codeID, userID string) error
	IncrementRedemptions(ctx context.Context, codeID string) error
	DeactivateCode(ctx context.Context, codeID string) error
	ListCodes(ctx context.Context, page core.PageParams) ([]AccessCode, int, error)

	CreateRequest(ctx context.Context, req *AccessRequest) error
	GetRequestForUpdate(ctx context.Context, id string) (*AccessRequest, error)
	ReviewRequest(ctx context.Context, req *AccessRequest) error
	ListRequests(
		ctx context.Context,
		status RequestStatus,
		page core.PageParams,
	) ([]AccessRequest, int, error)
	ListUserRequests(ctx context.Context, userID string) ([]AccessRequest, error)
}

type UpsertParams struct {
	UserID    string
	Plan      Plan
	ExpiresAt *time.Time
	GrantedBy *string
	Reason    string
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// grantedByConstraint is the Postgres default name of the granter FK.
const grantedByConstraint = "entitlements_granted_by_user_id_fkey"

const entitlementColumns = `
	user_id, plan, status, granted_at, expires_at, revoked_at, revoked_reason,
	granted_by_user_id, granted_reason, version, updated_at`

func (r *repository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *repository) Get(ctx context.Context, userID string) (*Entitlement, error) {
	var e Entitlement
	err := r.db.GetContext(ctx, &e,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE user_id = $1`,
		userID)
	if err != nil {
		return nil, wrapNoRows("get entitlement", err)
	}
	return &e, nil
}

func (r *repository) GetForUpdate(ctx context.Context, userID string) (*Entitlement, error) {
	var e Entitlement
	err := r.db.GetContext(ctx, &e,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE user_id = $1 FOR UPDATE`,
		userID)
	if err != nil {
		return nil, wrapNoRows("lock entitlement", err)
	}
	return &e, nil
}

func (r *repository) Upsert(ctx context.Context, in UpsertParams) (*Entitlement, error) {
	query := `
		INSERT INTO entitlements
			(user_id, plan, status, granted_at, expires_at,
			 granted_by_user_id, granted_reason, version, updated_at)
		VALUES ($1, $2, 'ACTIVE', NOW(), $3, $4, $5, 1, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = 'ACTIVE',
			granted_at = NOW(),
			expires_at = EXCLUDED.expires_at,
			revoked_at = NULL,
			revoked_reason = NULL,
			granted_by_user_id = EXCLUDED.granted_by_user_id,
			granted_reason = EXCLUDED.granted_reason,
			version = entitlements.version + 1,
			updated_at = NOW()
		RETURNING ` + entitlementColumns

	var e Entitlement
	err := r.db.GetContext(ctx, &e, query,
		in.UserID,
		in.Plan,
		in.ExpiresAt,
		in.GrantedBy,
		in.Reason,
	)
	if err != nil {
		return nil, upsertError(err)
	}
	return &e, nil
}

// upsertError tells a missing grantee apart from a missing granting admin.
func upsertError(err error) error {
	if !core.IsForeignKeyViolation(err) {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	if core.ViolatedConstraint(err) == grantedByConstraint {
		return fmt.Errorf("upsert entitlement: granting user: %w", core.ErrNotFound)
	}
	return fmt.Errorf("upsert entitlement: user: %w", core.ErrNotFound)
}

func (r *repository) MarkRevoked(
	ctx context.Context,
	userID, reason string,
) (*Entitlement, error) {
	query := `
		UPDATE entitlements SET
			status = 'REVOKED',
			revoked_at = NOW(),
			revoked_reason = $2,
			version = version + 1,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + entitlementColumns

	var e Entitlement
	if err := r.db.GetContext(ctx, &e, query, userID, reason); err != nil {
		return nil, wrapNoRows("revoke entitlement", err)
	}
	return &e, nil
}

const codeColumns = `
	id, code_hash, plan, duration_days, max_redemptions, current_redemptions,
	bonus_xp, expires_at, is_active, created_by, created_at`

func (r *repository) CreateCode(ctx context.Context, c *AccessCode) error {
	query := `
		INSERT INTO access_codes
			(id, code_hash, plan, duration_days, max_redemptions, bonus_xp, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING current_redemptions, is_active, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		c.ID,
		c.CodeHash,
		c.Plan,
		c.DurationDays,
		c.MaxRedemptions,
		c.BonusXP,
		c.ExpiresAt,
		c.CreatedBy,
	).Scan(&c.CurrentRedemptions, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create access code: %w", core.ErrDuplicateKey)
		}
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("create access code: creator: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create access code: %w", err)
	}
	return nil
}

func (r *repository) GetCodeByHashForUpdate(
	ctx context.Context,
	hash string,
) (*AccessCode, error) {
	var c AccessCode
	err := r.db.GetContext(ctx, &c,
		`SELECT `+codeColumns+` FROM access_codes WHERE code_hash = $1 FOR UPDATE`,
		hash)
	if err != nil {
		return nil, wrapNoRows("lock access code", err)
	}
	return &c, nil
}

func (r *repository) InsertRedemption(ctx context.Context, codeID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_code_redemptions (code_id, user_id) VALUES ($1, $2)`,
		codeID, userID)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("record redemption: %w", core.ErrDuplicateKey)
		}
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("record redemption: user: %w", core.ErrNotFound)
		}
		return fmt.Errorf("record redemption: %w", err)
	}
	return nil
}

// IncrementRedemptions relies on the table's CHECK to refuse going past
// max_redemptions.
func (r *repository) IncrementRedemptions(ctx context.Context, codeID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE access_codes SET current_redemptions = current_redemptions + 1 WHERE id = $1`,
		codeID)
	if err != nil {
		if core.IsCheckViolation(err) {
			return fmt.Errorf("increment redemptions: %w", core.ErrConflict)
		}
		return fmt.Errorf("increment redemptions: %w", err)
	}
	return nil
}

func (r *repository) DeactivateCode(ctx context.Context, codeID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE access_codes SET is_active = FALSE WHERE id = $1`, codeID)
	if err != nil {
		return fmt.Errorf("deactivate access code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate access code: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deactivate access code: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) ListCodes(
	ctx context.Context,
	page core.PageParams,
) ([]AccessCode, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM access_codes`); err != nil {
		return nil, 0, fmt.Errorf("count access codes: %w", err)
	}

	var codes []AccessCode
	err := r.db.SelectContext(ctx, &codes,
		`SELECT `+codeColumns+` FROM access_codes
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list access codes: %w", err)
	}
	return codes, total, nil
}

const requestColumns = `
	id, user_id, requested_plan, message, status, reviewed_by, reviewed_at,
	review_note, created_at`

func (r *repository) CreateRequest(ctx context.Context, req *AccessRequest) error {
	query := `
		INSERT INTO access_requests (id, user_id, requested_plan, message)
		VALUES ($1, $2, $3, $4)
		RETURNING status, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID,
		req.UserID,
		req.RequestedPlan,
		req.Message,
	).Scan(&req.Status, &req.CreatedAt)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create access request: %w", core.ErrDuplicateKey)
		}
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("create access request: user: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create access request: %w", err)
	}
	return nil
}

func (r *repository) GetRequestForUpdate(
	ctx context.Context,
	id string,
) (*AccessRequest, error) {
	var req AccessRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT `+requestColumns+` FROM access_requests WHERE id = $1 FOR UPDATE`,
		id)
	if err != nil {
		return nil, wrapNoRows("lock access request", err)
	}
	return &req, nil
}

func (r *repository) ReviewRequest(ctx context.Context, req *AccessRequest) error {
	query := `
		UPDATE access_requests
		SET status = $2, reviewed_by = $3, reviewed_at = NOW(), review_note = $4
		WHERE id = $1
		RETURNING reviewed_at`

	var reviewedAt time.Time
	err := r.db.GetContext(ctx, &reviewedAt, query,
		req.ID,
		req.Status,
		req.ReviewedBy,
		req.ReviewNote,
	)
	if err != nil {
		return wrapNoRows("review access request", err)
	}
	req.ReviewedAt = &reviewedAt
	return nil
}

func (r *repository) ListRequests(
	ctx context.Context,
	status RequestStatus,
	page core.PageParams,
) ([]AccessRequest, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM access_requests WHERE status = $1`, status)
	if err != nil {
		return nil, 0, fmt.Errorf("count access requests: %w", err)
	}

	var reqs []AccessRequest
	err = r.db.SelectContext(ctx, &reqs,
		`SELECT `+requestColumns+` FROM access_requests
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`,
		status, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list access requests: %w", err)
	}
	return reqs, total, nil
}

func (r *repository) ListUserRequests(
	ctx context.Context,
	userID string,
) ([]AccessRequest, error) {
	var reqs []AccessRequest
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT `+requestColumns+` FROM access_requests
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list user access requests: %w", err)
	}
	return reqs, nil
}

func wrapNoRows(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
