package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

const stateAudience = "oauth-state"

type codeSyncer interface {
	SyncFromCode(ctx context.Context, code string) (*dto.SyncSummary, error)
}

type consentURLBuilder interface {
	AuthCodeURL(state string) string
}

type authIdentityReader interface {
	FindByID(ctx context.Context, id string) (*models.Identity, error)
}

// AuthConfig defines configuration for local session tokens.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	StateExpiry       time.Duration
}

// AuthService runs the provider sign-in flow and issues local session tokens.
type AuthService struct {
	syncer     codeSyncer
	consent    consentURLBuilder
	identities authIdentityReader
	validator  *validator.Validate
	logger     *zap.Logger
	config     AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(syncer codeSyncer, consent consentURLBuilder, identities authIdentityReader, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.StateExpiry <= 0 {
		config.StateExpiry = 10 * time.Minute
	}
	return &AuthService{syncer: syncer, consent: consent, identities: identities, validator: validate, logger: logger, config: config}
}

// AuthURL returns the provider consent URL with a signed, short-lived state value.
func (s *AuthService) AuthURL() (*dto.AuthURLResponse, error) {
	state, err := s.generateState()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sign-in state")
	}
	return &dto.AuthURLResponse{URL: s.consent.AuthCodeURL(state), State: state}, nil
}

// Callback syncs the caller's rosters from an authorization code and issues a session token.
func (s *AuthService) Callback(ctx context.Context, req dto.SyncRequest) (*dto.CallbackResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid callback payload")
	}
	if err := s.validateState(req.State); err != nil {
		return nil, err
	}

	summary, err := s.syncer.SyncFromCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	caller := summary.Caller()
	if caller == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "sync returned no caller")
	}
	// The sync path only tells how the caller signed in this time; the stored row carries the
	// sticky role and any email kept from earlier syncs.
	identity, err := s.identities.FindByID(ctx, caller.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signed-in identity")
	}
	user := models.UserInfo{ID: identity.ID, Name: identity.Name, Role: identity.Role}
	if identity.Email != nil {
		user.Email = *identity.Email
	}

	token, _, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("sign-in completed", zap.String("identity_id", user.ID), zap.String("role", string(user.Role)))
	return &dto.CallbackResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		User:        user,
		Summary:     summary,
	}, nil
}

// Me returns the identity behind the session.
func (s *AuthService) Me(ctx context.Context, claims *models.JWTClaims) (*models.Identity, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	identity, err := s.identities.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "identity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}
	return identity, nil
}

// ValidateToken parses and verifies a session token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, s.keyFunc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(s.config.AccessTokenSecret), nil
}

func (s *AuthService) generateAccessToken(user models.UserInfo) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) generateState() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	issuedAt := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Audience:  jwt.ClaimStrings{stateAudience},
		ID:        base64.RawURLEncoding.EncodeToString(nonce),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.StateExpiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) validateState(state string) error {
	if _, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, s.keyFunc, jwt.WithAudience(stateAudience)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrAuthorizationFailed.Code, appErrors.ErrAuthorizationFailed.Status, "invalid or expired sign-in state")
	}
	return nil
}
