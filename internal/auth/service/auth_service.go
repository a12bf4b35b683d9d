package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	challengedomain "chain-audit/backend/internal/challenge/domain"
	"chain-audit/backend/internal/security"
	validatordomain "chain-audit/backend/internal/validator/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP codes.
// ErrInvalidNonce deliberately covers unknown, expired, already-consumed,
// and wallet/purpose-mismatched nonces alike so callers cannot probe which
// condition failed.
var (
	ErrMissingWallet     = errors.New("wallet is required")
	ErrInvalidPurpose    = errors.New("invalid challenge purpose")
	ErrUnauthorizedActor = errors.New("wallet is not an active validator")
	ErrInvalidNonce      = errors.New("invalid, expired, or already-used nonce")
	ErrInvalidSignature  = errors.New("invalid signature")
)

// DefaultChallengeTTL bounds how long an issued challenge stays redeemable.
const DefaultChallengeTTL = 10 * time.Minute

// ChallengeRepo is the minimal challenge repository needed by the auth service.
type ChallengeRepo interface {
	Create(ctx context.Context, c *challengedomain.Challenge) error
	Consume(ctx context.Context, wallet string, purpose challengedomain.Purpose, nonce string, now time.Time) (*challengedomain.Challenge, error)
}

// ValidatorRepo is the minimal validator repository needed by the auth service.
type ValidatorRepo interface {
	GetActiveByWallet(ctx context.Context, wallet string) (*validatordomain.Validator, error)
}

// LoginResult holds the outcome of a successful challenge-response login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Validator *validatordomain.Validator
}

// AuthService implements wallet challenge-response authentication: challenge
// issuance, session login, and per-action authorization.
type AuthService struct {
	challengeRepo ChallengeRepo
	validatorRepo ValidatorRepo
	tokens        *security.TokenProvider
	challengeTTL  time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
// challengeTTL <= 0 falls back to DefaultChallengeTTL.
func NewAuthService(challengeRepo ChallengeRepo, validatorRepo ValidatorRepo, tokens *security.TokenProvider, challengeTTL time.Duration) *AuthService {
	if challengeTTL <= 0 {
		challengeTTL = DefaultChallengeTTL
	}
	return &AuthService{
		challengeRepo: challengeRepo,
		validatorRepo: validatorRepo,
		tokens:        tokens,
		challengeTTL:  challengeTTL,
	}
}

// IssueChallenge creates a fresh single-use challenge bound to wallet and
// purpose. The nonce is a random UUID, unique with overwhelming probability;
// the signing message binds purpose and nonce together.
func (s *AuthService) IssueChallenge(ctx context.Context, wallet, purpose string) (*challengedomain.Challenge, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, ErrMissingWallet
	}
	p, err := challengedomain.ParsePurpose(purpose)
	if err != nil {
		return nil, ErrInvalidPurpose
	}
	nonce := uuid.New().String()
	now := time.Now().UTC()
	c := &challengedomain.Challenge{
		Nonce:     nonce,
		Wallet:    wallet,
		Purpose:   p,
		Message:   challengedomain.BuildMessage(p, nonce),
		CreatedAt: now,
		ExpiresAt: now.Add(s.challengeTTL),
	}
	if err := s.challengeRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AuthenticateLogin runs the three-step check (active validator, nonce
// consumption, signature verification) and mints a session token.
//
// The order is part of the contract: the validator lookup comes first so
// rejections are uniform, and the nonce is consumed before the signature is
// checked, so a presented-but-wrong signature still burns the nonce.
func (s *AuthService) AuthenticateLogin(ctx context.Context, wallet, nonce, signature string) (*LoginResult, error) {
	wallet = strings.TrimSpace(wallet)
	v, err := s.authorize(ctx, wallet, challengedomain.PurposeLogin, nonce, signature)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.IssueSession(wallet, v.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Validator: v}, nil
}

// AuthorizeAction runs the same three-step check for a single state-changing
// action without minting a session, so every mutation carries its own fresh
// proof of wallet control.
func (s *AuthService) AuthorizeAction(ctx context.Context, wallet string, purpose challengedomain.Purpose, nonce, signature string) (*validatordomain.Validator, error) {
	return s.authorize(ctx, strings.TrimSpace(wallet), purpose, nonce, signature)
}

func (s *AuthService) authorize(ctx context.Context, wallet string, purpose challengedomain.Purpose, nonce, signature string) (*validatordomain.Validator, error) {
	v, err := s.validatorRepo.GetActiveByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrUnauthorizedActor
	}
	c, err := s.challengeRepo.Consume(ctx, wallet, purpose, nonce, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrInvalidNonce
	}
	if !security.VerifyWalletSignature(wallet, c.Message, signature) {
		return nil, ErrInvalidSignature
	}
	return v, nil
}
