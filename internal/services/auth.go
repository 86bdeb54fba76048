package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"merchpos/internal/domain"
	"merchpos/internal/metrics"
)

const minPasswordLen = 8

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AuthSettings holds the registration policy.
type AuthSettings struct {
	// PresidentEmail registers directly as an active president.
	PresidentEmail string
	// AllowedEmailDomains restricts registration when non-empty. Entries are lowercase without "@".
	AllowedEmailDomains []string
	TokenExpiry         time.Duration
}

type authService struct {
	userRepo       domain.UserRepository
	hasher         domain.PasswordHasher
	tokenIssuer    domain.TokenIssuer
	emailService   domain.EmailService
	activity       domain.ActivityService
	settings       AuthSettings
	metrics        *metrics.Metrics
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewAuthService creates an AuthService. emailService may be nil, in which case no notifications are sent.
func NewAuthService(userRepo domain.UserRepository, hasher domain.PasswordHasher, tokenIssuer domain.TokenIssuer, emailService domain.EmailService, activity domain.ActivityService, settings AuthSettings, m *metrics.Metrics, logger *slog.Logger, timeout time.Duration) domain.AuthService {
	settings.PresidentEmail = strings.TrimSpace(strings.ToLower(settings.PresidentEmail))
	return &authService{
		userRepo:       userRepo,
		hasher:         hasher,
		tokenIssuer:    tokenIssuer,
		emailService:   emailService,
		activity:       activity,
		settings:       settings,
		metrics:        m,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *authService) domainAllowed(email string) bool {
	if len(s.settings.AllowedEmailDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	return slices.Contains(s.settings.AllowedEmailDomains, email[at+1:])
}

// resolveRole returns the role and status a new account starts with, plus the role it is waiting for.
func (s *authService) resolveRole(email, requested string) (role, requestedRole, status string, err error) {
	requested = strings.TrimSpace(strings.ToLower(requested))
	if s.settings.PresidentEmail != "" && email == s.settings.PresidentEmail {
		return domain.RolePresident, "", domain.UserStatusActive, nil
	}
	switch requested {
	case "", domain.RoleMember:
		return domain.RoleMember, "", domain.UserStatusActive, nil
	case domain.RoleOfficer, domain.RoleAdmin:
		return domain.RoleMember, requested, domain.UserStatusPending, nil
	default:
		return "", "", "", fmt.Errorf("%w: %q cannot be requested", domain.ErrInvalidRole, requested)
	}
}

func (s *authService) Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email := strings.TrimSpace(strings.ToLower(in.Email))
	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	if !s.domainAllowed(email) {
		return nil, domain.ErrEmailDomainNotAllowed
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	role, requestedRole, status, err := s.resolveRole(email, in.Role)
	if err != nil {
		return nil, err
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(salt, in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := domain.NewUser(email, name, role, status, now, now)
	user.RequestedRole = requestedRole
	user.PasswordHash = hash
	user.Salt = salt
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.metrics.UserRegistered(status)
	s.activity.Record(ctx, user.ID, domain.ActionRegister, "user", user.ID, "role="+role+" status="+status)

	if status == domain.UserStatusPending {
		s.notifyPresident(ctx, user)
	}
	return user, nil
}

func (s *authService) notifyPresident(ctx context.Context, user *domain.User) {
	if s.emailService == nil {
		return
	}
	if s.settings.PresidentEmail == "" {
		s.logger.WarnContext(ctx, "no president email configured; role request not sent", "user_id", user.ID)
		return
	}
	data := &domain.RoleRequestEmailData{
		To:             s.settings.PresidentEmail,
		RequesterName:  user.Name,
		RequesterEmail: user.Email,
		RequestedRole:  user.RequestedRole,
	}
	if err := s.emailService.SendRoleRequest(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "send role request email", "user_id", user.ID, "err", err)
	}
}

func (s *authService) notifyDecision(ctx context.Context, user *domain.User, approved bool) {
	if s.emailService == nil {
		return
	}
	data := &domain.RoleDecisionEmailData{
		Email:    user.Email,
		Name:     user.Name,
		Approved: approved,
		Role:     user.Role,
	}
	if err := s.emailService.SendRoleDecision(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "send role decision email", "user_id", user.ID, "err", err)
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, user.Salt, password); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokenIssuer.Issue(user.ID, user.Email, user.Role, s.settings.TokenExpiry)
	if err != nil {
		return "", nil, err
	}
	s.activity.Record(ctx, user.ID, domain.ActionLogin, "user", user.ID, "")
	return token, user, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *authService) ListPending(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	users, err := s.userRepo.ListByStatus(ctx, domain.UserStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	return users, nil
}

// requirePresident loads the acting user and checks it is an active president.
func (s *authService) requirePresident(ctx context.Context, actorID string) error {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrForbidden
		}
		return fmt.Errorf("failed to get acting user: %w", err)
	}
	if !actor.IsActive() || actor.Role != domain.RolePresident {
		return domain.ErrForbidden
	}
	return nil
}

func (s *authService) loadPending(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Status != domain.UserStatusPending {
		return nil, domain.ErrNotPending
	}
	return user, nil
}

// Approve activates a pending user. grantedRole defaults to the role they requested.
func (s *authService) Approve(ctx context.Context, approverID, userID, grantedRole string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.requirePresident(ctx, approverID); err != nil {
		return nil, err
	}
	user, err := s.loadPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	granted := strings.TrimSpace(strings.ToLower(grantedRole))
	if granted == "" {
		granted = user.RequestedRole
	}
	switch granted {
	case domain.RoleMember, domain.RoleOfficer, domain.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %q cannot be granted", domain.ErrInvalidRole, granted)
	}

	updated, err := s.userRepo.UpdateRole(ctx, userID, granted, "", domain.UserStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to approve user: %w", err)
	}
	s.activity.Record(ctx, approverID, domain.ActionApproveRole, "user", userID, "role="+granted)
	s.notifyDecision(ctx, updated, true)
	return updated, nil
}

// Reject activates a pending user as a member and drops the role request.
func (s *authService) Reject(ctx context.Context, approverID, userID string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.requirePresident(ctx, approverID); err != nil {
		return nil, err
	}
	user, err := s.loadPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.userRepo.UpdateRole(ctx, userID, domain.RoleMember, "", domain.UserStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to reject user: %w", err)
	}
	s.activity.Record(ctx, approverID, domain.ActionRejectRole, "user", userID, "requested="+user.RequestedRole)
	s.notifyDecision(ctx, updated, false)
	return updated, nil
}

func (s *authService) DeleteUser(ctx context.Context, actorID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.requirePresident(ctx, actorID); err != nil {
		return err
	}
	if actorID == userID {
		return fmt.Errorf("%w: cannot delete your own account", domain.ErrForbidden)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.activity.Record(ctx, actorID, domain.ActionDeleteUser, "user", userID, "")
	return nil
}
