package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LocalProvider is an in-process Provider used when no Firebase service
// account is configured: development environments and the test suite. User
// records live in memory and tokens are HS256 JWTs signed with a shared
// secret, so issued tokens verify against the same process only.
type LocalProvider struct {
	mu      sync.RWMutex
	secret  []byte
	users   map[string]*UserRecord
	byEmail map[string]string
}

func NewLocalProvider(secret string) *LocalProvider {
	return &LocalProvider{
		secret:  []byte(secret),
		users:   map[string]*UserRecord{},
		byEmail: map[string]string{},
	}
}

type localClaims struct {
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

func (p *LocalProvider) VerifyToken(_ context.Context, idToken string) (*Token, error) {
	parsed, err := jwt.ParseWithClaims(idToken, &localClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*localClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Token{
		UID:           claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func (p *LocalProvider) CreateUser(_ context.Context, params CreateUserParams) (*UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[params.Email]; exists {
		return nil, ErrEmailExists
	}

	record := &UserRecord{
		UID:           uuid.New().String(),
		Email:         params.Email,
		DisplayName:   params.DisplayName,
		EmailVerified: params.EmailVerified,
	}
	p.users[record.UID] = record
	p.byEmail[record.Email] = record.UID

	copied := *record
	return &copied, nil
}

func (p *LocalProvider) GetUser(_ context.Context, uid string) (*UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	record, ok := p.users[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *record
	return &copied, nil
}

func (p *LocalProvider) UpdateUser(_ context.Context, uid string, params UpdateUserParams) (*UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.users[uid]
	if !ok {
		return nil, ErrUserNotFound
	}

	if params.Email != nil && *params.Email != record.Email {
		if _, taken := p.byEmail[*params.Email]; taken {
			return nil, ErrEmailExists
		}
		delete(p.byEmail, record.Email)
		record.Email = *params.Email
		p.byEmail[record.Email] = uid
	}
	if params.DisplayName != nil {
		record.DisplayName = *params.DisplayName
	}
	// Passwords are never checked by the local provider; the field is
	// accepted so callers exercise the same code path as the real provider.

	copied := *record
	return &copied, nil
}

func (p *LocalProvider) CustomToken(_ context.Context, uid string) (string, error) {
	p.mu.RLock()
	record, ok := p.users[uid]
	var claims localClaims
	if ok {
		claims.Email = record.Email
		claims.Name = record.DisplayName
		claims.EmailVerified = record.EmailVerified
	}
	p.mu.RUnlock()

	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// UserCount reports how many provider records exist. Exposed for diagnostics
// and migration tests.
func (p *LocalProvider) UserCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users)
}
