package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/internal/models/db_models"
	"github.com/Pabby01/studIQ-sub001/internal/models/request_models"
	"github.com/Pabby01/studIQ-sub001/internal/models/response_models"
	"github.com/Pabby01/studIQ-sub001/internal/repositories"
	"github.com/Pabby01/studIQ-sub001/pkg/logger"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

type AccountServiceInterface interface {
	Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error)
	CreateAccount(ctx context.Context, request request_models.SignUpRequest) error
}

type AccountService struct {
	accountRepo repositories.AccountRepository
	jwtSecret   []byte
	jwtTTL      time.Duration
	adminEmails map[string]struct{}
	log         *zap.Logger

	// dummyHash is compared against when the email is unknown so both
	// branches pay for one bcrypt comparison.
	dummyHash string
}

// NewAccountService builds the account service. Accounts registered with an
// email from adminEmails get the admin role.
func NewAccountService(accountRepo repositories.AccountRepository, jwtSecret []byte, jwtTTL time.Duration, adminEmails []string, log *zap.Logger) AccountServiceInterface {
	dummy, _ := utils.HashPassword("studiq-placeholder-password")
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[normalizeEmail(email)] = struct{}{}
	}
	return &AccountService{
		accountRepo: accountRepo,
		jwtSecret:   jwtSecret,
		jwtTTL:      jwtTTL,
		adminEmails: admins,
		log:         log,
		dummyHash:   dummy,
	}
}

func (a *AccountService) Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error) {
	email := normalizeEmail(request.Email)

	account, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	if account == nil {
		_ = utils.ComparePasswords(a.dummyHash, request.Password)
		return nil, utils.ErrBadCredentials
	}

	if err := utils.ComparePasswords(account.PasswordHash, request.Password); err != nil {
		a.log.Info("login rejected", logger.String("email", logger.MaskEmail(email)))
		return nil, utils.ErrBadCredentials
	}

	token, err := utils.CreateToken(a.jwtSecret, account.ID, account.Role, a.jwtTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %v", utils.ErrInternal, err)
	}

	return &response_models.AccountLoginResponse{
		Token:     token,
		ExpiresIn: int64(a.jwtTTL.Seconds()),
		Role:      account.Role,
	}, nil
}

func (a *AccountService) CreateAccount(ctx context.Context, request request_models.SignUpRequest) error {
	email := normalizeEmail(request.Email)

	existingAccount, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if existingAccount != nil {
		return utils.ErrEmailTaken
	}

	hashedPassword, err := utils.HashPassword(request.Password)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", utils.ErrInternal, err)
	}

	role := db_models.RoleUser
	if _, ok := a.adminEmails[email]; ok {
		role = db_models.RoleAdmin
	}

	newAccount := &db_models.Account{
		Name:         request.DisplayName,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
	}

	if err := a.accountRepo.InsertTx(newAccount, ctx); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	a.log.Info("account created",
		logger.String("user_id", newAccount.ID.String()),
		logger.String("role", role),
	)
	return nil
}
