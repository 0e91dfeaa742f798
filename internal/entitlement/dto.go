// AngelaMos | 2026
// dto.go

package entitlement

import (
	"time"
)

type GrantRequest struct {
	Plan            string     `json:"plan"             validate:"required,oneof=FREE BASIC PRO"`
	Reason          string     `json:"reason"           validate:"max=255"`
	ExpiresAt       *time.Time `json:"expires_at"`
	ExpectedVersion *int64     `json:"expected_version" validate:"omitempty,gte=0"`
}

type RevokeRequest struct {
	Reason          string `json:"reason"           validate:"required,max=255"`
	ExpectedVersion *int64 `json:"expected_version" validate:"omitempty,gte=0"`
}

type RedeemCodeRequest struct {
	Code string `json:"code" validate:"required,min=4,max=64"`
}

type CreateCodeRequest struct {
	Plan           string     `json:"plan"            validate:"required,oneof=BASIC PRO"`
	MaxRedemptions int        `json:"max_redemptions" validate:"required,gte=1,lte=100000"`
	DurationDays   *int       `json:"duration_days"   validate:"omitempty,gte=1,lte=3650"`
	BonusXP        int64      `json:"bonus_xp"        validate:"gte=0,lte=100000"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

type SubmitRequestRequest struct {
	Plan    string `json:"plan"    validate:"required,oneof=BASIC PRO"`
	Message string `json:"message" validate:"max=1000"`
}

type ReviewRequestRequest struct {
	Note      string     `json:"note"       validate:"max=1000"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type ResolutionResponse struct {
	UserID        string     `json:"user_id"`
	Plan          Plan       `json:"plan"`
	EffectivePlan Plan       `json:"effective_plan"`
	Status        Status     `json:"status"`
	HasAccess     bool       `json:"has_access"`
	IsAdmin       bool       `json:"is_admin"`
	Tier          Tier       `json:"tier"`
	GrantedAt     *time.Time `json:"granted_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Version       int64      `json:"version"`
}

type EntitlementResponse struct {
	UserID        string     `json:"user_id"`
	Plan          Plan       `json:"plan"`
	Status        Status     `json:"status"`
	GrantedAt     time.Time  `json:"granted_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason *string    `json:"revoked_reason,omitempty"`
	GrantedBy     *string    `json:"granted_by,omitempty"`
	GrantedReason string     `json:"granted_reason"`
	Version       int64      `json:"version"`
}

type InspectResponse struct {
	Entitlement EntitlementResponse `json:"entitlement"`
	Resolution  ResolutionResponse  `json:"resolution"`
}

type AccessCodeResponse struct {
	ID                 string     `json:"id"`
	Code               string     `json:"code,omitempty"`
	Plan               Plan       `json:"plan"`
	DurationDays       *int       `json:"duration_days,omitempty"`
	MaxRedemptions     int        `json:"max_redemptions"`
	CurrentRedemptions int        `json:"current_redemptions"`
	BonusXP            int64      `json:"bonus_xp"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
}

type RedeemResponse struct {
	Success     bool                `json:"success"`
	Plan        Plan                `json:"plan"`
	BonusXP     int64               `json:"bonus_xp"`
	Entitlement EntitlementResponse `json:"entitlement"`
}

type AccessRequestResponse struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	RequestedPlan Plan          `json:"requested_plan"`
	Message       string        `json:"message"`
	Status        RequestStatus `json:"status"`
	ReviewedBy    *string       `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty"`
	ReviewNote    string        `json:"review_note,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type ApproveResponse struct {
	Request     AccessRequestResponse `json:"request"`
	Entitlement EntitlementResponse   `json:"entitlement"`
}

func ToResolutionResponse(r *Resolution) ResolutionResponse {
	return ResolutionResponse{
		UserID:        r.UserID,
		Plan:          r.Plan,
		EffectivePlan: r.EffectivePlan,
		Status:        r.Status,
		HasAccess:     r.HasAccess,
		IsAdmin:       r.IsAdmin,
		Tier:          r.Tier,
		GrantedAt:     r.GrantedAt,
		ExpiresAt:     r.ExpiresAt,
		Version:       r.Version,
	}
}

func ToEntitlementResponse(e *Entitlement) EntitlementResponse {
	return EntitlementResponse{
		UserID:        e.UserID,
		Plan:          e.Plan,
		Status:        e.Status,
		GrantedAt:     e.GrantedAt,
		ExpiresAt:     e.ExpiresAt,
		RevokedAt:     e.RevokedAt,
		RevokedReason: e.RevokedReason,
		GrantedBy:     e.GrantedBy,
		GrantedReason: e.GrantedReason,
		Version:       e.Version,
	}
}

func ToAccessCodeResponse(c *AccessCode, plaintext string) AccessCodeResponse {
	return AccessCodeResponse{
		ID:                 c.ID,
		Code:               plaintext,
		Plan:               c.Plan,
		DurationDays:       c.DurationDays,
		MaxRedemptions:     c.MaxRedemptions,
		CurrentRedemptions: c.CurrentRedemptions,
		BonusXP:            c.BonusXP,
		ExpiresAt:          c.ExpiresAt,
		IsActive:           c.IsActive,
		CreatedAt:          c.CreatedAt,
	}
}

func ToAccessRequestResponse(r *AccessRequest) AccessRequestResponse {
	return AccessRequestResponse{
		ID:            r.ID,
		UserID:        r.UserID,
		RequestedPlan: r.RequestedPlan,
		Message:       r.Message,
		Status:        r.Status,
		ReviewedBy:    r.ReviewedBy,
		ReviewedAt:    r.ReviewedAt,
		ReviewNote:    r.ReviewNote,
		CreatedAt:     r.CreatedAt,
	}
}

func ToAccessRequestResponseList(reqs []AccessRequest) []AccessRequestResponse {
	out := make([]AccessRequestResponse, len(reqs))
	for i := range reqs {
		out[i] = ToAccessRequestResponse(&reqs[i])
	}
	return out
}
