// Package auth issues and verifies the access tokens that carry a member's
// identity, organization, and role.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-commissions/internal/common"
	"github.com/noah-isme/backend-commissions/internal/team"
)

const defaultAccessTTL = 15 * time.Minute

const (
	claimOrganization = "org_id"
	claimRole         = "role"
)

// Service authenticates members and mints signed tokens.
type Service struct {
	members   team.Store
	secret    []byte
	accessTTL time.Duration
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	now       func() time.Time
}

// Config configures the auth service.
type Config struct {
	Members        team.Store
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
	Now            func() time.Time
}

// NewService constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Members == nil {
		return nil, errors.New("auth: member store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-commissions"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "commissions-frontend"
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		members:   cfg.Members,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: cfg.ClockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:   issuer,
		audience: audience,
		now:      now,
	}, nil
}

// LoginResult bundles the token returned after a successful login.
type LoginResult struct {
	Member       team.Member `json:"member"`
	AccessToken  string      `json:"accessToken"`
	AccessExpiry time.Time   `json:"accessExpiresAt"`
}

// Login checks the credentials and issues an access token. Inactive members
// cannot log in.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, common.NewValidationError("email and password are required", nil)
	}
	member, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, team.ErrNotFound) {
			return LoginResult{}, invalidCredentials()
		}
		return LoginResult{}, common.NewStorageError("failed to load member", err)
	}
	match, err := argon2id.ComparePasswordAndHash(password, member.PasswordHash)
	if err != nil || !match {
		return LoginResult{}, invalidCredentials()
	}
	if !member.Active {
		return LoginResult{}, common.NewPermissionError("account is deactivated")
	}

	token, expiry, err := s.issueToken(member)
	if err != nil {
		return LoginResult{}, common.NewStorageError("failed to issue token", err)
	}
	return LoginResult{Member: member, AccessToken: token, AccessExpiry: expiry}, nil
}

func invalidCredentials() *common.AppError {
	return common.NewAppError("UNAUTHORIZED", "invalid email or password", http.StatusUnauthorized, nil)
}

func (s *Service) issueToken(member team.Member) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(member.ID.String()).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim(claimOrganization, member.OrganizationID.String()).
		Claim(claimRole, string(member.Role)).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// ParseAccessToken verifies the token and returns the actor it carries.
func (s *Service) ParseAccessToken(token string) (common.Actor, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Actor{}, unauthorized(nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Actor{}, unauthorized(err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return common.Actor{}, unauthorized(errors.New("unexpected token algorithm"))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return common.Actor{}, unauthorized(err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return common.Actor{}, unauthorized(err)
	}
	actor := common.Actor{MemberID: parsed.Subject()}
	if v, ok := parsed.Get(claimOrganization); ok {
		actor.OrganizationID, _ = v.(string)
	}
	if v, ok := parsed.Get(claimRole); ok {
		actor.Role, _ = v.(string)
	}
	if actor.MemberID == "" || actor.OrganizationID == "" || actor.Role == "" {
		return common.Actor{}, unauthorized(errors.New("token missing identity claims"))
	}
	return actor, nil
}

func unauthorized(err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" {
		return "", errors.New("auth: token missing algorithm")
	}
	return alg, nil
}
