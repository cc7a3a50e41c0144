package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Pabby01/studIQ-sub001/internal/models/db_models"
	"github.com/Pabby01/studIQ-sub001/internal/repositories"
	"github.com/Pabby01/studIQ-sub001/pkg/logger"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

// GenericResetMessage is the only success text the request endpoint returns.
const GenericResetMessage = "If an account with this email exists, password reset instructions have been sent"

const (
	endpointResetRequest = "/auth/password-reset/request"
	endpointResetConfirm = "/auth/password-reset/confirm"
	endpointResetCleanup = "/auth/password-reset/cleanup"
)

// Throttle layers, logged with every denial.
const (
	layerEmail       = "email"
	layerOriginEmail = "origin_email"
	layerConfirm     = "confirm"
)

type PasswordResetPolicy struct {
	Window         time.Duration
	EmailMax       int
	OriginEmailMax int
	ConfirmMax     int

	TokenTTL        time.Duration
	StepTimeout     time.Duration
	MinResponseTime time.Duration

	// SurfaceStoreErrors turns a token store failure on request into a 500
	// instead of the generic success.
	SurfaceStoreErrors bool
}

type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, clientOrigin string) error
	ConfirmReset(ctx context.Context, rawToken, newPassword, clientOrigin string) error
	SweepExpired(ctx context.Context) (int64, error)
	Drain(ctx context.Context) error
}

type PasswordResetService struct {
	accountRepo repositories.AccountRepository
	tokenRepo   repositories.ResetTokenRepository
	limiter     RateLimiterInterface
	mail        IMailService
	policy      PasswordResetPolicy
	log         *zap.Logger
	validate    *validator.Validate
	locks       *keyedMutex
	dispatches  sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPasswordResetService(
	accountRepo repositories.AccountRepository,
	tokenRepo repositories.ResetTokenRepository,
	limiter RateLimiterInterface,
	mail IMailService,
	policy PasswordResetPolicy,
	log *zap.Logger,
) PasswordResetServiceInterface {
	if policy.StepTimeout <= 0 {
		policy.StepTimeout = 5 * time.Second
	}
	if policy.TokenTTL <= 0 {
		policy.TokenTTL = 15 * time.Minute
	}

	return &PasswordResetService{
		accountRepo: accountRepo,
		tokenRepo:   tokenRepo,
		limiter:     limiter,
		mail:        mail,
		policy:      policy,
		log:         log,
		validate:    validator.New(),
		locks:       newKeyedMutex(),
		now:         func() time.Time { return time.Now().UTC() },
		sleep:       waitContext,
	}
}

// RequestReset issues a reset link for email when the account exists. Apart
// from validation and throttling, every outcome looks the same to the caller.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, clientOrigin string) error {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return utils.NewValidationError("email", "must be a valid email address")
	}

	start := s.now()
	defer s.padResponse(ctx, start)

	log := s.log.With(
		logger.String("endpoint", endpointResetRequest),
		logger.String("email", logger.MaskEmail(email)),
		logger.Time("requested_at", start),
	)

	if err := s.throttle(ctx, log, layerEmail, "reset:email:"+email, s.policy.EmailMax); err != nil {
		return err
	}
	if err := s.throttle(ctx, log, layerOriginEmail, "reset:"+originKey(clientOrigin)+":"+email, s.policy.OriginEmailMax); err != nil {
		return err
	}

	account, err := s.findAccount(ctx, email)
	if err != nil {
		log.Error("account lookup failed", logger.ErrorField(fmt.Errorf("%w: %v", utils.ErrAccountLookup, err)))
		return nil
	}
	if account == nil {
		log.Info("reset requested for unknown email")
		return nil
	}

	unlock := s.locks.Lock(account.ID.String())
	defer unlock()

	token, err := s.issueToken(ctx, account)
	if err != nil {
		return s.storeFailure(log, err)
	}

	s.dispatchResetMail(ctx, log, account.Email, token)

	log.Info("reset token issued", logger.String("user_id", account.ID.String()))
	return nil
}

// dispatchResetMail sends the link on its own goroutine. The response never
// waits for the mail server; a failure is only logged and the stored token
// stays valid.
func (s *PasswordResetService) dispatchResetMail(ctx context.Context, log *zap.Logger, to, token string) {
	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()

		mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.StepTimeout)
		defer cancel()
		if err := s.mail.SendMailToResetPassword(mailCtx, to, token); err != nil {
			log.Warn("reset email dispatch failed", logger.ErrorField(fmt.Errorf("%w: %v", utils.ErrEmailDispatch, err)))
		}
	}()
}

// Drain waits for queued reset emails to finish or for ctx to end.
func (s *PasswordResetService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.dispatches.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// issueToken replaces every outstanding token of the account with a new
// one and returns the raw value. Only its digest is stored.
func (s *PasswordResetService) issueToken(ctx context.Context, account *db_models.Account) (string, error) {
	raw, err := utils.GenerateSecureToken(utils.ResetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	delCtx, cancel := context.WithTimeout(ctx, s.policy.StepTimeout)
	defer cancel()
	if err := s.tokenRepo.DeleteAllForUser(delCtx, account.ID); err != nil {
		return "", fmt.Errorf("invalidate prior tokens: %w", err)
	}

	now := s.now()
	row := &db_models.ResetToken{
		UserID:    account.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(s.policy.TokenTTL),
		CreatedAt: now,
	}

	insCtx, cancelIns := context.WithTimeout(ctx, s.policy.StepTimeout)
	defer cancelIns()
	if err := s.tokenRepo.Insert(insCtx, row); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}

	return raw, nil
}

// storeFailure raises the alert for a token store error and decides what the
// caller sees.
func (s *PasswordResetService) storeFailure(log *zap.Logger, err error) error {
	wrapped := fmt.Errorf("%w: %v", utils.ErrTokenStore, err)
	logger.Critical(log, "reset token store failure", logger.ErrorField(wrapped))

	if s.policy.SurfaceStoreErrors {
		return wrapped
	}
	return nil
}

// ConfirmReset consumes a reset token and sets the new password.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, rawToken, newPassword, clientOrigin string) error {
	rawToken = strings.ToLower(strings.TrimSpace(rawToken))
	if !utils.IsResetTokenShape(rawToken) {
		return utils.NewValidationError("token", "must be 64 hexadecimal characters")
	}
	if n := len(newPassword); n < 8 || n > 72 {
		return utils.NewValidationError("new_password", "must be between 8 and 72 characters")
	}

	log := s.log.With(logger.String("endpoint", endpointResetConfirm))

	if err := s.throttle(ctx, log, layerConfirm, "confirm:"+originKey(clientOrigin), s.policy.ConfirmMax); err != nil {
		return err
	}

	digest := utils.HashToken(rawToken)
	row, err := s.findToken(ctx, digest)
	if err != nil {
		log.Error("token lookup failed", logger.ErrorField(err))
		return fmt.Errorf("%w: %v", utils.ErrTokenStore, err)
	}
	if row == nil || !utils.TokenHashesEqual(row.TokenHash, digest) {
		log.Info("unknown reset token submitted")
		return utils.ErrInvalidResetToken
	}
	if row.IsExpired(s.now()) {
		log.Info("expired reset token submitted", logger.String("user_id", row.UserID.String()))
		return utils.ErrInvalidResetToken
	}

	unlock := s.locks.Lock(row.UserID.String())
	defer unlock()

	// A concurrent confirm may have consumed the token while we waited.
	row, err = s.findToken(ctx, digest)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrTokenStore, err)
	}
	if row == nil {
		return utils.ErrInvalidResetToken
	}

	stepCtx, cancel := context.WithTimeout(ctx, s.policy.StepTimeout)
	defer cancel()

	account, err := s.accountRepo.FindById(stepCtx, row.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if account == nil {
		if err := s.tokenRepo.DeleteAllForUser(stepCtx, row.UserID); err != nil {
			log.Warn("orphaned reset token cleanup failed",
				logger.String("user_id", row.UserID.String()),
				logger.ErrorField(fmt.Errorf("%w: %v", utils.ErrTokenStore, err)),
			)
		}
		return utils.ErrInvalidResetToken
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", utils.ErrInternal, err)
	}

	if err := s.tokenRepo.DeleteAllForUser(stepCtx, account.ID); err != nil {
		logger.Critical(log, "reset token consume failed", logger.ErrorField(err))
		return fmt.Errorf("%w: %v", utils.ErrTokenStore, err)
	}
	if err := s.accountRepo.UpdatePassword(stepCtx, account.ID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrInvalidResetToken
		}
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	log.Info("password reset completed",
		logger.String("user_id", account.ID.String()),
		logger.String("email", logger.MaskEmail(account.Email)),
	)

	mailCtx, cancelMail := context.WithTimeout(ctx, s.policy.StepTimeout)
	defer cancelMail()
	if err := s.mail.SendPasswordChangedNotice(mailCtx, account.Email); err != nil {
		log.Warn("password changed notice failed", logger.ErrorField(fmt.Errorf("%w: %v", utils.ErrEmailDispatch, err)))
	}
	return nil
}

// SweepExpired deletes every token whose expiry has passed.
func (s *PasswordResetService) SweepExpired(ctx context.Context) (int64, error) {
	now := s.now()
	deleted, err := s.tokenRepo.DeleteExpired(ctx, now)
	if err != nil {
		s.log.Error("expired token sweep failed",
			logger.String("endpoint", endpointResetCleanup),
			logger.ErrorField(err),
		)
		return 0, fmt.Errorf("%w: %v", utils.ErrTokenStore, err)
	}

	s.log.Info("expired reset tokens swept",
		logger.String("endpoint", endpointResetCleanup),
		logger.Int64("deleted", deleted),
		logger.Time("swept_at", now),
	)
	return deleted, nil
}

func (s *PasswordResetService) throttle(ctx context.Context, log *zap.Logger, layer, key string, max int) error {
	decision, err := s.limiter.Check(ctx, key, s.policy.Window, max)
	if err != nil {
		log.Error("rate limiter unavailable", logger.String("layer", layer), logger.ErrorField(err))
		return fmt.Errorf("%w: %v", utils.ErrInternal, err)
	}
	if !decision.Allowed {
		log.Warn("rate limited",
			logger.String("layer", layer),
			logger.Time("retry_at", decision.ResetAt),
		)
		return &utils.RateLimitedError{RetryAt: decision.ResetAt}
	}
	return nil
}

func (s *PasswordResetService) findAccount(ctx context.Context, email string) (*db_models.Account, error) {
	stepCtx, cancel := context.WithTimeout(ctx, s.policy.StepTimeout)
	defer cancel()
	return s.accountRepo.FindByEmail(stepCtx, email)
}

func (s *PasswordResetService) findToken(ctx context.Context, digest string) (*db_models.ResetToken, error) {
	stepCtx, cancel := context.WithTimeout(ctx, s.policy.StepTimeout)
	defer cancel()
	return s.tokenRepo.FindByHash(stepCtx, digest)
}

// padResponse holds the call until MinResponseTime has passed since start.
func (s *PasswordResetService) padResponse(ctx context.Context, start time.Time) {
	remaining := s.policy.MinResponseTime - s.now().Sub(start)
	if remaining > 0 {
		_ = s.sleep(ctx, remaining)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func originKey(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "unknown"
	}
	return origin
}
