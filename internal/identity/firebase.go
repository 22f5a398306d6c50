package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/findcamp/backend/internal/config"
	"google.golang.org/api/option"
)

// FirebaseProvider adapts the Firebase Admin SDK to the Provider interface.
type FirebaseProvider struct {
	client *auth.Client
}

func NewFirebaseProvider(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseProvider, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed initializing firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed initializing firebase auth client: %w", err)
	}

	return &FirebaseProvider{client: client}, nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, idToken string) (*Token, error) {
	verified, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	token := &Token{UID: verified.UID}
	if email, ok := verified.Claims["email"].(string); ok {
		token.Email = email
	}
	if name, ok := verified.Claims["name"].(string); ok {
		token.Name = name
	}
	if verifiedClaim, ok := verified.Claims["email_verified"].(bool); ok {
		token.EmailVerified = verifiedClaim
	}
	return token, nil
}

func (p *FirebaseProvider) CreateUser(ctx context.Context, params CreateUserParams) (*UserRecord, error) {
	toCreate := (&auth.UserToCreate{}).
		Email(params.Email).
		Password(params.Password).
		EmailVerified(params.EmailVerified)
	if params.DisplayName != "" {
		toCreate = toCreate.DisplayName(params.DisplayName)
	}

	record, err := p.client.CreateUser(ctx, toCreate)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return fromFirebaseRecord(record), nil
}

func (p *FirebaseProvider) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	record, err := p.client.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return fromFirebaseRecord(record), nil
}

func (p *FirebaseProvider) UpdateUser(ctx context.Context, uid string, params UpdateUserParams) (*UserRecord, error) {
	toUpdate := &auth.UserToUpdate{}
	if params.Email != nil {
		toUpdate = toUpdate.Email(*params.Email)
	}
	if params.Password != nil {
		toUpdate = toUpdate.Password(*params.Password)
	}
	if params.DisplayName != nil {
		toUpdate = toUpdate.DisplayName(*params.DisplayName)
	}

	record, err := p.client.UpdateUser(ctx, uid, toUpdate)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return fromFirebaseRecord(record), nil
}

func (p *FirebaseProvider) CustomToken(ctx context.Context, uid string) (string, error) {
	return p.client.CustomToken(ctx, uid)
}

func fromFirebaseRecord(record *auth.UserRecord) *UserRecord {
	return &UserRecord{
		UID:           record.UID,
		Email:         record.Email,
		DisplayName:   record.DisplayName,
		EmailVerified: record.EmailVerified,
	}
}
