package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for user operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

// Roles, lowest privilege first.
const (
	RoleMember    = "member"
	RoleOfficer   = "officer"
	RoleAdmin     = "admin"
	RolePresident = "president"
)

// User statuses.
const (
	UserStatusPending = "pending"
	UserStatusActive  = "active"
)

var roleRank = map[string]int{
	RoleMember:    1,
	RoleOfficer:   2,
	RoleAdmin:     3,
	RolePresident: 4,
}

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	_, ok := roleRank[r]
	return ok
}

// RoleAtLeast reports whether role grants at least the privileges of min.
func RoleAtLeast(role, min string) bool {
	return roleRank[role] >= roleRank[min] && roleRank[min] > 0
}

// User represents a registered organization member.
// swagger:model User
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Salt          string    `json:"-"`
	Role          string    `json:"role"`
	RequestedRole string    `json:"requested_role,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewUser returns a new User with the given fields. ID is typically set by the repository on create.
func NewUser(email, name, role, status string, createdAt, updatedAt time.Time) *User {
	return &User{
		Email:     email,
		Name:      name,
		Role:      role,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// IsActive reports whether the user may use the application.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// RegisterInput is the registration request handed to AuthService.Register.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// PasswordHasher handles salt generation, hashing, and verification.
// Implementations may use bcrypt, argon2, etc.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email, role string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated user ID.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	ListByStatus(ctx context.Context, status string) ([]*User, error)
	UpdateRole(ctx context.Context, id, role, requestedRole, status string) (*User, error)
	Delete(ctx context.Context, id string) error
}

// AuthService defines registration, login and the role approval workflow.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	Login(ctx context.Context, email, password string) (token string, user *User, err error)
	Me(ctx context.Context, userID string) (*User, error)
	ListPending(ctx context.Context) ([]*User, error)
	Approve(ctx context.Context, approverID, userID, grantedRole string) (*User, error)
	Reject(ctx context.Context, approverID, userID string) (*User, error)
	DeleteUser(ctx context.Context, actorID, userID string) error
}
