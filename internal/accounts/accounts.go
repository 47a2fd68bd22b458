// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package accounts handles registration, email verification, password
// login and user administration. The resulting access.Principal is what
// the forum service checks.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"forum/internal/access"
	"forum/internal/apperr"
	"forum/internal/metrics"
	"forum/internal/models"
	"forum/internal/validate"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultRegistrationLimit = 2
	DefaultTokenTTL          = 24 * time.Hour
)

// mailTimeout bounds a background verification mail.
const mailTimeout = 30 * time.Second

// Cache holds registration counters and verification tokens.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Users is the account persistence the service needs.
type Users interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, page, limit int) ([]models.User, int, error)
	Create(ctx context.Context, username, email, password string, role models.Role, status models.UserStatus) (*models.User, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) error
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error
	UpdateProfile(ctx context.Context, id uuid.UUID, avatarURL, location, signature *string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	CheckPassword(user *models.User, password string) bool
}

// Options tunes the service.
type Options struct {
	// RegistrationLimit is how many accounts one IP may register per
	// calendar day.
	RegistrationLimit int
	TokenTTL          time.Duration
}

// Service manages the account lifecycle.
type Service struct {
	users  Users
	cache  Cache
	mailer Mailer
	opts   Options
	now    func() time.Time
	wg     sync.WaitGroup
}

// New creates a Service. A nil mailer logs verification mails instead.
func New(users Users, cache Cache, mailer Mailer, opts Options) *Service {
	if opts.RegistrationLimit <= 0 {
		opts.RegistrationLimit = DefaultRegistrationLimit
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{users: users, cache: cache, mailer: mailer, opts: opts, now: time.Now}
}

// RegisterInput is a self-service signup.
type RegisterInput struct {
	Username string `json:"username" validate:"notblank,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register creates a PENDING_VERIFICATION user and mails a verification
// token. Each IP may register a limited number of accounts per day; the
// limit is not enforced while the cache is unreachable.
func (s *Service) Register(ctx context.Context, in RegisterInput, ip string) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if err := s.checkRegistrationLimit(ctx, ip); err != nil {
		metrics.Registrations.WithLabelValues("rate_limited").Inc()
		return nil, err
	}

	u, err := s.users.Create(ctx, in.Username, in.Email, in.Password, models.RoleUser, models.StatusPendingVerification)
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			metrics.Registrations.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}
	metrics.Registrations.WithLabelValues("created").Inc()
	slog.Info("user registered", "user_id", u.ID, "username", u.Username)

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		// The account exists; the user can ask for a new mail.
		slog.Warn("verification token not issued", "user_id", u.ID, "error", err)
		return u, nil
	}
	s.sendVerification(u, token)
	return u, nil
}

func registrationKey(ip string) string {
	return "register_limit:" + ip
}

func (s *Service) checkRegistrationLimit(ctx context.Context, ip string) error {
	if ip == "" {
		slog.Warn("registration without client ip, limit not applied")
		return nil
	}
	n, err := s.cache.Incr(ctx, registrationKey(ip), untilMidnight(s.now()))
	if err != nil {
		slog.Warn("registration limit unavailable, allowing", "ip", ip, "error", err)
		return nil
	}
	if n > int64(s.opts.RegistrationLimit) {
		slog.Warn("registration limit exceeded", "ip", ip, "count", n)
		return apperr.RateLimited("too many registrations from this address, try again tomorrow")
	}
	return nil
}

// untilMidnight returns the time left until the next local midnight.
func untilMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Sub(now)
}

func tokenKey(token string) string {
	return "verify_token:" + token
}

func userTokenKey(id uuid.UUID) string {
	return "verify_token_by_id:" + id.String()
}

// issueToken stores a fresh token in both directions so it can be redeemed
// and reused on resend.
func (s *Service) issueToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token := uuid.NewString()
	if err := s.cache.Set(ctx, tokenKey(token), userID.String(), s.opts.TokenTTL); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	if err := s.cache.Set(ctx, userTokenKey(userID), token, s.opts.TokenTTL); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}

func (s *Service) sendVerification(u *models.User, token string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.mailer.SendVerification(ctx, u.Email, u.Username, token); err != nil {
			slog.Error("verification mail failed", "user_id", u.ID, "error", err)
		}
	}()
}

// Wait blocks until background mails have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Verify redeems a verification token and activates its account. Redeeming
// for an account that is already active succeeds.
func (s *Service) Verify(ctx context.Context, token string) (*models.User, error) {
	raw, ok, err := s.cache.Get(ctx, tokenKey(token))
	if err != nil {
		slog.Warn("verification token lookup failed", "error", err)
	}
	if !ok {
		return nil, apperr.NotFound("verification token is invalid or expired")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.forgetToken(ctx, token, uuid.Nil)
		return nil, apperr.NotFound("verification token is invalid or expired")
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.forgetToken(ctx, token, id)
		return nil, apperr.NotFound("verification token is invalid or expired")
	}

	switch u.Status {
	case models.StatusActive:
	case models.StatusPendingVerification:
		if err := s.users.SetStatus(ctx, u.ID, models.StatusActive); err != nil {
			return nil, err
		}
		u.Status = models.StatusActive
		slog.Info("user verified", "user_id", u.ID, "username", u.Username)
	default:
		s.forgetToken(ctx, token, u.ID)
		return nil, apperr.Invalid("account is %s and cannot be verified", u.Status)
	}

	s.forgetToken(ctx, token, u.ID)
	return u, nil
}

func (s *Service) forgetToken(ctx context.Context, token string, userID uuid.UUID) {
	keys := []string{tokenKey(token)}
	if userID != uuid.Nil {
		keys = append(keys, userTokenKey(userID))
	}
	for _, k := range keys {
		if err := s.cache.Delete(ctx, k); err != nil {
			slog.Warn("verification token not removed", "key", k, "error", err)
		}
	}
}

// ResendVerification mails the verification token again, reusing the live
// one when there is one.
func (s *Service) ResendVerification(ctx context.Context, usernameOrEmail string) error {
	u, err := s.users.FindByLogin(ctx, usernameOrEmail)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.NotFound("user %q not found", usernameOrEmail)
	}
	if u.Status != models.StatusPendingVerification {
		return apperr.Invalid("account is %s, nothing to verify", u.Status)
	}

	token, ok, err := s.cache.Get(ctx, userTokenKey(u.ID))
	if err != nil {
		slog.Warn("verification token lookup failed", "user_id", u.ID, "error", err)
	}
	if ok {
		if _, live, _ := s.cache.Get(ctx, tokenKey(token)); !live {
			ok = false
		}
	}
	if !ok {
		if token, err = s.issueToken(ctx, u.ID); err != nil {
			return err
		}
	}
	s.sendVerification(u, token)
	return nil
}

// Authenticate checks a password login and returns the caller's principal.
// Only ACTIVE accounts may log in.
func (s *Service) Authenticate(ctx context.Context, usernameOrEmail, password string) (*access.Principal, error) {
	u, err := s.users.FindByLogin(ctx, usernameOrEmail)
	if err != nil {
		return nil, err
	}
	if u == nil || !s.users.CheckPassword(u, password) {
		slog.Info("login failed", "login", usernameOrEmail)
		return nil, apperr.Unauthorized("invalid username or password")
	}
	if u.Status != models.StatusActive {
		return nil, apperr.Forbidden("account is %s", u.Status)
	}

	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		slog.Warn("last login not recorded", "user_id", u.ID, "error", err)
	}
	return access.FromUser(u), nil
}
