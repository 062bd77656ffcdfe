package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/internal/platform/auth"
	"github.com/dentaldesk/dental/pkg/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrLoginDisabled      = errors.New("password login is disabled in this auth mode")
)

type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

type Service struct {
	repo     Repository
	profiles ProfileReader
	issuer   *auth.TokenIssuer
	cost     int

	// compared against when the email is unknown so both paths cost a
	// bcrypt round
	dummyHash []byte
}

// NewService wires the account service. issuer is nil unless the server
// issues its own tokens (standalone auth mode).
func NewService(repo Repository, profiles ProfileReader, issuer *auth.TokenIssuer, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("dummy-password"), cost)
	return &Service{repo: repo, profiles: profiles, issuer: issuer, cost: cost, dummyHash: dummy}
}

func (s *Service) LoginEnabled() bool { return s.issuer != nil }

func (s *Service) Login(ctx context.Context, req LoginRequest) (*auth.Session, error) {
	if s.issuer == nil {
		return nil, ErrLoginDisabled
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	cred, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNoCredential) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, cred.UserID, cred.Email, "")
}

// Refresh exchanges a recently expired token for a new one, re-reading the
// role so demotions take effect.
func (s *Service) Refresh(ctx context.Context, token string) (*auth.Session, error) {
	if s.issuer == nil {
		return nil, ErrLoginDisabled
	}
	claims, err := s.issuer.ParseForRefresh(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if _, err := s.repo.GetByUserID(ctx, uid); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, uid, claims.Email, claims.BranchID)
}

func (s *Service) issue(ctx context.Context, uid uuid.UUID, email, branch string) (*auth.Session, error) {
	p, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return s.issuer.Issue(uid.String(), email, []string{p.Role}, branch)
}

// ChangePassword validates the form, re-authenticates with the current
// password, then stores the new hash.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	cred, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			return validation.Errors{"current_password": "current password is incorrect"}
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return validation.Errors{"current_password": "current password is incorrect"}
	}
	return s.setHash(ctx, cred.UserID, cred.Email, req.NewPassword)
}

// SetPassword creates or replaces a login. Used when bootstrapping accounts.
func (s *Service) SetPassword(ctx context.Context, userID uuid.UUID, email, password string) error {
	if msg := passwordProblem(password); msg != "" {
		return validation.Errors{"password": msg}
	}
	return s.setHash(ctx, userID, strings.ToLower(strings.TrimSpace(email)), password)
}

func (s *Service) setHash(ctx context.Context, userID uuid.UUID, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Upsert(ctx, &Credential{UserID: userID, Email: email, PasswordHash: string(hash)})
}
