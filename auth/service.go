package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidInput signals a request that fails field validation.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals the password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrNotApproved signals the account has not been approved by an admin.
	ErrNotApproved = errors.New("auth: account pending admin approval")
	// ErrRejected signals the account was rejected by an admin.
	ErrRejected = errors.New("auth: account rejected by admin")
	// ErrInvalidToken signals a malformed, expired, or tampered token.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrAdminOnly signals the caller lacks the admin role.
	ErrAdminOnly = errors.New("auth: admin role required")
)

// Service handles registration, login, approval, and token verification.
type Service struct {
	repo       Repository
	jwtSecret  []byte
	expiration time.Duration
	now        func() time.Time
	idGen      func() string
}

// LoginResult bundles the token and account returned after a successful login.
type LoginResult struct {
	Token   string
	Account Account
}

// NewService creates an authentication service.
func NewService(repo Repository, jwtSecret string, expiration time.Duration) *Service {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &Service{
		repo:       repo,
		jwtSecret:  []byte(jwtSecret),
		expiration: expiration,
		now:        time.Now,
		idGen:      uuid.NewString,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides account id generation. Intended for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// Register creates a marketplace account in the pending approval state.
// Admin accounts cannot be self-registered through this path.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	role := Role(strings.ToLower(strings.TrimSpace(string(req.Role))))
	if role != RoleFarmer && role != RoleFPO && role != RoleRetailer {
		return Account{}, fmt.Errorf("%w: invalid registration role %q", ErrInvalidInput, req.Role)
	}
	if req.Name == "" || req.Email == "" {
		return Account{}, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if req.RegistryNo == "" {
		return Account{}, fmt.Errorf("%w: registry number is required for role %q", ErrInvalidInput, role)
	}
	if len(req.Password) < 8 {
		return Account{}, ErrWeakPassword
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("auth: hash password: %w", err)
	}

	registryNo := req.RegistryNo
	params := CreateAccountParams{
		ID:           s.idGen(),
		Role:         role,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		RegistryNo:   &registryNo,
		City:         req.City,
		State:        req.State,
		Approval:     ApprovalPending,
	}
	if req.WalletAddress != "" {
		wallet := req.WalletAddress
		params.WalletAddress = &wallet
	}

	return s.repo.CreateAccount(ctx, params)
}

// Login authenticates an account and returns a signed JWT. Only approved
// accounts may log in; admins are always approved.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	role := Role(strings.ToLower(strings.TrimSpace(string(req.Role))))
	if !isValidRole(role) {
		return LoginResult{}, fmt.Errorf("%w: invalid role %q", ErrInvalidInput, req.Role)
	}

	acct, err := s.repo.GetByEmail(ctx, role, req.Email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	switch acct.Approval {
	case ApprovalApproved:
	case ApprovalRejected:
		return LoginResult{}, ErrRejected
	default:
		return LoginResult{}, ErrNotApproved
	}

	token, err := s.generateToken(acct)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{Token: token, Account: acct}, nil
}

// LoginCheck reports an account's approval status without authenticating,
// so clients can show a useful message before prompting for a password.
func (s *Service) LoginCheck(ctx context.Context, role Role, email string) (Approval, error) {
	acct, err := s.repo.GetByEmail(ctx, role, email)
	if err != nil {
		return "", err
	}
	return acct.Approval, nil
}

// ListPending returns accounts awaiting admin review. Admin only.
func (s *Service) ListPending(ctx context.Context, caller Principal) ([]Account, error) {
	if caller.Role != RoleAdmin {
		return nil, ErrAdminOnly
	}
	return s.repo.ListPending(ctx)
}

// SetApproval records the admin decision for an account. Admin only.
func (s *Service) SetApproval(ctx context.Context, caller Principal, accountID string, approval Approval) (Account, error) {
	if caller.Role != RoleAdmin {
		return Account{}, ErrAdminOnly
	}
	if approval != ApprovalApproved && approval != ApprovalRejected {
		return Account{}, fmt.Errorf("%w: invalid approval decision %q", ErrInvalidInput, approval)
	}
	return s.repo.SetApproval(ctx, accountID, approval)
}

// VerifyToken validates a JWT and returns the principal it encodes.
func (s *Service) VerifyToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Principal{}, ErrInvalidToken
	}
	roleStr, ok := claims["role"].(string)
	if !ok || !isValidRole(Role(roleStr)) {
		return Principal{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)

	return Principal{ID: userID, Role: Role(roleStr), Name: name}, nil
}

// LoadPrincipal verifies the token and confirms the backing account still
// exists and remains approved. This is the single place a request identity
// is assembled.
func (s *Service) LoadPrincipal(ctx context.Context, tokenString string) (Principal, error) {
	principal, err := s.VerifyToken(tokenString)
	if err != nil {
		return Principal{}, err
	}

	acct, err := s.repo.GetByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if acct.Role != RoleAdmin && acct.Approval != ApprovalApproved {
		return Principal{}, ErrNotApproved
	}

	return Principal{ID: acct.ID, Role: acct.Role, Name: acct.Name}, nil
}

func (s *Service) generateToken(acct Account) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": acct.ID,
		"role":    acct.Role,
		"name":    acct.Name,
		"exp":     now.Add(s.expiration).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
