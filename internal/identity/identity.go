package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidToken = errors.New("invalid identity token")
	ErrUserNotFound = errors.New("identity user not found")
	ErrEmailExists  = errors.New("email already registered with identity provider")
)

// Token is a verified bearer token's payload.
type Token struct {
	UID           string
	Email         string
	Name          string
	EmailVerified bool
}

// UserRecord mirrors the provider-side user entry keyed by its uid.
type UserRecord struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool
}

type CreateUserParams struct {
	Email         string
	Password      string
	DisplayName   string
	EmailVerified bool
}

// UpdateUserParams carries sparse provider-side updates; nil fields are left
// untouched.
type UpdateUserParams struct {
	Email       *string
	Password    *string
	DisplayName *string
}

// Provider is the external identity boundary: token verification, the remote
// user record lifecycle, and exchange-token issuance. Implementations are
// built once at startup and safe for concurrent use.
type Provider interface {
	VerifyToken(ctx context.Context, idToken string) (*Token, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*UserRecord, error)
	GetUser(ctx context.Context, uid string) (*UserRecord, error)
	UpdateUser(ctx context.Context, uid string, params UpdateUserParams) (*UserRecord, error)
	CustomToken(ctx context.Context, uid string) (string, error)
}
