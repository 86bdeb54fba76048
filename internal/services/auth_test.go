package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchpos/internal/domain"
)

const presidentEmail = "president@school.edu"

type authFixture struct {
	users    *fakeUserRepo
	issuer   *fakeIssuer
	emails   *fakeEmailService
	activity *fakeActivityRepo
	svc      domain.AuthService
}

func newAuthFixture(domains ...string) *authFixture {
	f := &authFixture{
		users:    newFakeUserRepo(),
		issuer:   &fakeIssuer{},
		emails:   &fakeEmailService{},
		activity: &fakeActivityRepo{},
	}
	settings := AuthSettings{PresidentEmail: " President@School.edu ", AllowedEmailDomains: domains, TokenExpiry: time.Hour}
	activity := NewActivityService(f.activity, discardLogger(), 5*time.Second)
	f.svc = NewAuthService(f.users, fakeHasher{}, f.issuer, f.emails, activity, settings, nil, discardLogger(), 5*time.Second)
	return f
}

// seedUser stores an account that can log in with "password123".
func (f *authFixture) seedUser(id, email, role, requested, status string) *domain.User {
	u := &domain.User{ID: id, Email: email, Name: "Seeded", Role: role, RequestedRole: requested, Status: status, Salt: "salt", PasswordHash: "hash:saltpassword123"}
	f.users.byID[id] = u
	return u
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		domains       []string
		in            domain.RegisterInput
		wantErr       error
		wantRole      string
		wantRequested string
		wantStatus    string
		wantRequests  int
	}{
		{
			name:       "member is active immediately",
			in:         domain.RegisterInput{Email: "Ana@School.edu", Password: "password123", Name: "Ana"},
			wantRole:   domain.RoleMember,
			wantStatus: domain.UserStatusActive,
		},
		{
			name:          "officer request stays pending and notifies president",
			in:            domain.RegisterInput{Email: "ben@school.edu", Password: "password123", Name: "Ben", Role: "officer"},
			wantRole:      domain.RoleMember,
			wantRequested: domain.RoleOfficer,
			wantStatus:    domain.UserStatusPending,
			wantRequests:  1,
		},
		{
			name:          "admin request stays pending",
			in:            domain.RegisterInput{Email: "cy@school.edu", Password: "password123", Name: "Cy", Role: "ADMIN"},
			wantRole:      domain.RoleMember,
			wantRequested: domain.RoleAdmin,
			wantStatus:    domain.UserStatusPending,
			wantRequests:  1,
		},
		{
			name:       "configured president email",
			in:         domain.RegisterInput{Email: presidentEmail, Password: "password123", Name: "Pres", Role: "member"},
			wantRole:   domain.RolePresident,
			wantStatus: domain.UserStatusActive,
		},
		{
			name:    "president cannot be requested",
			in:      domain.RegisterInput{Email: "dee@school.edu", Password: "password123", Name: "Dee", Role: "president"},
			wantErr: domain.ErrInvalidRole,
		},
		{
			name:    "invalid email",
			in:      domain.RegisterInput{Email: "not-an-email", Password: "password123", Name: "X"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "short password",
			in:      domain.RegisterInput{Email: "eve@school.edu", Password: "short", Name: "Eve"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "missing name",
			in:      domain.RegisterInput{Email: "eve@school.edu", Password: "password123", Name: " "},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "domain not allowed",
			domains: []string{"school.edu"},
			in:      domain.RegisterInput{Email: "eve@gmail.com", Password: "password123", Name: "Eve"},
			wantErr: domain.ErrEmailDomainNotAllowed,
		},
		{
			name:       "allowed domain",
			domains:    []string{"school.edu"},
			in:         domain.RegisterInput{Email: "eve@school.edu", Password: "password123", Name: "Eve"},
			wantRole:   domain.RoleMember,
			wantStatus: domain.UserStatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(tt.domains...)
			u, err := f.svc.Register(ctx, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.users.byID)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, u.ID)
			assert.Equal(t, tt.wantRole, u.Role)
			assert.Equal(t, tt.wantRequested, u.RequestedRole)
			assert.Equal(t, tt.wantStatus, u.Status)
			assert.Equal(t, "salt", u.Salt)
			assert.Len(t, f.emails.requests, tt.wantRequests)
			if tt.wantRequests > 0 {
				assert.Equal(t, presidentEmail, f.emails.requests[0].To)
				assert.Equal(t, tt.wantRequested, f.emails.requests[0].RequestedRole)
			}
			assert.Equal(t, []string{domain.ActionRegister}, f.activity.actions())
		})
	}
}

func TestAuthService_Register_duplicateEmail(t *testing.T) {
	f := newAuthFixture()
	f.seedUser("user-9", "ana@school.edu", domain.RoleMember, "", domain.UserStatusActive)

	_, err := f.svc.Register(context.Background(), domain.RegisterInput{Email: "ana@school.edu", Password: "password123", Name: "Ana"})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestAuthService_Register_emailFailureDoesNotFail(t *testing.T) {
	f := newAuthFixture()
	f.emails.err = errors.New("ses down")

	u, err := f.svc.Register(context.Background(), domain.RegisterInput{Email: "ben@school.edu", Password: "password123", Name: "Ben", Role: "officer"})
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusPending, u.Status)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "success", email: " ANA@school.edu", password: "password123"},
		{name: "wrong password", email: "ana@school.edu", password: "password124", wantErr: domain.ErrInvalidCredentials},
		{name: "unknown email", email: "nobody@school.edu", password: "password123", wantErr: domain.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			f.seedUser("user-1", "ana@school.edu", domain.RoleOfficer, "", domain.UserStatusActive)

			token, u, err := f.svc.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				assert.Empty(t, f.activity.entries)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "token-user-1", token)
			assert.Equal(t, "user-1", u.ID)
			assert.Equal(t, domain.RoleOfficer, f.issuer.role)
			assert.Equal(t, []string{domain.ActionLogin}, f.activity.actions())
		})
	}
}

func TestAuthService_Login_pendingUserCanLogIn(t *testing.T) {
	f := newAuthFixture()
	f.seedUser("user-2", "ben@school.edu", domain.RoleMember, domain.RoleOfficer, domain.UserStatusPending)

	_, u, err := f.svc.Login(context.Background(), "ben@school.edu", "password123")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusPending, u.Status)
}

func TestAuthService_ApprovalWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	pres := f.seedUser("pres", presidentEmail, domain.RolePresident, "", domain.UserStatusActive)

	u, err := f.svc.Register(ctx, domain.RegisterInput{Email: "ben@school.edu", Password: "password123", Name: "Ben", Role: "officer"})
	require.NoError(t, err)
	require.Equal(t, domain.UserStatusPending, u.Status)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, u.ID, pending[0].ID)

	approved, err := f.svc.Approve(ctx, pres.ID, u.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOfficer, approved.Role)
	assert.Equal(t, domain.UserStatusActive, approved.Status)
	assert.Empty(t, approved.RequestedRole)

	me, err := f.svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOfficer, me.Role)
	assert.Empty(t, me.RequestedRole)

	require.Len(t, f.emails.decisions, 1)
	assert.True(t, f.emails.decisions[0].Approved)
	assert.Equal(t, "ben@school.edu", f.emails.decisions[0].Email)
	assert.Equal(t, domain.RoleOfficer, f.emails.decisions[0].Role)

	_, err = f.svc.Approve(ctx, pres.ID, u.ID, "")
	require.ErrorIs(t, err, domain.ErrNotPending)

	pending, err = f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAuthService_Approve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		approver string
		granted  string
		wantErr  error
		wantRole string
	}{
		{name: "grant different role", approver: "pres", granted: "officer", wantRole: domain.RoleOfficer},
		{name: "grant member", approver: "pres", granted: "member", wantRole: domain.RoleMember},
		{name: "president cannot be granted", approver: "pres", granted: "president", wantErr: domain.ErrInvalidRole},
		{name: "officer cannot approve", approver: "officer", wantErr: domain.ErrForbidden},
		{name: "pending president cannot approve", approver: "pending-pres", wantErr: domain.ErrForbidden},
		{name: "unknown approver", approver: "ghost", wantErr: domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			f.seedUser("pres", presidentEmail, domain.RolePresident, "", domain.UserStatusActive)
			f.seedUser("officer", "off@school.edu", domain.RoleOfficer, "", domain.UserStatusActive)
			f.seedUser("pending-pres", "pp@school.edu", domain.RolePresident, "", domain.UserStatusPending)
			f.seedUser("target", "t@school.edu", domain.RoleMember, domain.RoleAdmin, domain.UserStatusPending)

			u, err := f.svc.Approve(ctx, tt.approver, "target", tt.granted)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, domain.UserStatusPending, f.users.byID["target"].Status)
				assert.Empty(t, f.emails.decisions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, u.Role)
			assert.Equal(t, []string{domain.ActionApproveRole}, f.activity.actions())
			assert.Equal(t, "pres", f.activity.entries[0].UserID)
		})
	}
}

func TestAuthService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	f.seedUser("pres", presidentEmail, domain.RolePresident, "", domain.UserStatusActive)
	f.seedUser("target", "t@school.edu", domain.RoleMember, domain.RoleAdmin, domain.UserStatusPending)
	f.seedUser("active", "a@school.edu", domain.RoleMember, "", domain.UserStatusActive)

	u, err := f.svc.Reject(ctx, "pres", "target")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, u.Role)
	assert.Equal(t, domain.UserStatusActive, u.Status)
	assert.Empty(t, u.RequestedRole)
	require.Len(t, f.emails.decisions, 1)
	assert.False(t, f.emails.decisions[0].Approved)

	_, err = f.svc.Reject(ctx, "pres", "active")
	require.ErrorIs(t, err, domain.ErrNotPending)

	_, err = f.svc.Reject(ctx, "pres", "ghost")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	f.seedUser("pres", presidentEmail, domain.RolePresident, "", domain.UserStatusActive)
	f.seedUser("admin", "admin@school.edu", domain.RoleAdmin, "", domain.UserStatusActive)
	f.seedUser("member", "m@school.edu", domain.RoleMember, "", domain.UserStatusActive)

	require.ErrorIs(t, f.svc.DeleteUser(ctx, "admin", "member"), domain.ErrForbidden)
	require.ErrorIs(t, f.svc.DeleteUser(ctx, "pres", "pres"), domain.ErrForbidden)
	require.ErrorIs(t, f.svc.DeleteUser(ctx, "pres", "ghost"), domain.ErrUserNotFound)

	require.NoError(t, f.svc.DeleteUser(ctx, "pres", "member"))
	assert.NotContains(t, f.users.byID, "member")
	assert.Equal(t, []string{domain.ActionDeleteUser}, f.activity.actions())
}
