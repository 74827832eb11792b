package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject  string
	Role     enums.ActorRole
	TenantID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to callers. Service
// tokens carry the tenant they act for; admin tokens do not.
type AccessTokenClaims struct {
	Role     enums.ActorRole `json:"role"`
	TenantID *uuid.UUID      `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}
