package service

import (
	"context"
	"strings"
	"testing"

	"trackly/internal/model"
)

type userFixture struct {
	users  *fakeUserRepo
	tokens *fakeRefreshTokenRepo
	audits *fakeAuditRepo
	svc    UserService
}

func newUserFixture() *userFixture {
	users := newFakeUserRepo()
	tokens := newFakeRefreshTokenRepo()
	audits := &fakeAuditRepo{}
	svc := NewUserService(users, tokens, audits, fakeTxManager{})
	return &userFixture{users: users, tokens: tokens, audits: audits, svc: svc}
}

func TestFirstRegisteredUserBecomesAdmin(t *testing.T) {
	f := newUserFixture()

	first, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Alice", Email: "alice@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register first: %v", err)
	}
	if first.Role != model.RoleAdmin {
		t.Errorf("first user role = %s, want admin", first.Role)
	}

	second, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Bob", Email: "bob@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.Role != model.RoleUser {
		t.Errorf("second user role = %s, want user", second.Role)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newUserFixture()

	if _, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Alice", Email: "alice@example.com", Password: "secret123",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Alice Again", Email: "alice@example.com", Password: "other456",
	})
	if err == nil {
		t.Fatal("expected duplicate email to fail")
	}
}

func TestLoginAndRefreshRotation(t *testing.T) {
	f := newUserFixture()

	if _, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Alice", Email: "alice@example.com", Password: "secret123",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tokens, err := f.svc.Login(context.Background(), LoginUserRequest{
		Email: "alice@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tokens.Token == "" || tokens.RefreshToken == "" {
		t.Fatal("login must return both tokens")
	}

	rotated, err := f.svc.RefreshToken(context.Background(), RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Error("refresh must rotate the refresh token")
	}

	// Old token is single-use.
	if _, err := f.svc.RefreshToken(context.Background(), RefreshTokenRequest{RefreshToken: tokens.RefreshToken}); err == nil {
		t.Error("reusing a rotated refresh token must fail")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newUserFixture()

	if _, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Alice", Email: "alice@example.com", Password: "secret123",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := f.svc.Login(context.Background(), LoginUserRequest{
		Email: "alice@example.com", Password: "wrong",
	}); err == nil {
		t.Fatal("expected login with wrong password to fail")
	}
}

func TestUpdateUserRoleValidatesRole(t *testing.T) {
	f := newUserFixture()

	admin, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Admin", Email: "admin@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	target, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Bob", Email: "bob@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := f.svc.UpdateUserRole(context.Background(), target.ID, admin.ID, UpdateRoleRequest{Role: "superuser"}); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}

	updated, err := f.svc.UpdateUserRole(context.Background(), target.ID, admin.ID, UpdateRoleRequest{Role: model.RoleFinance})
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != model.RoleFinance {
		t.Errorf("role = %s, want finance", updated.Role)
	}
}

func TestBulkUploadUsersAssignsManagers(t *testing.T) {
	f := newUserFixture()
	admin, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Admin", Email: "admin@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	csv := strings.Join([]string{
		"email,password,role,name,manager_email",
		"carol@example.com,pw123456,approver,Carol,",
		"bob@example.com,pw123456,user,Bob,carol@example.com",
		"alice@example.com,pw123456,user,Alice,bob@example.com",
	}, "\n")

	count, err := f.svc.BulkUploadUsers(context.Background(), admin.ID, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("bulk upload: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	alice, err := f.users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("lookup alice: %v", err)
	}
	bob, err := f.users.GetByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("lookup bob: %v", err)
	}
	if alice.ManagerID == nil || *alice.ManagerID != bob.ID {
		t.Errorf("alice's manager = %v, want bob", alice.ManagerID)
	}
}

func TestBulkUploadRejectsUnknownManager(t *testing.T) {
	f := newUserFixture()
	admin, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Admin", Email: "admin@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	csv := strings.Join([]string{
		"email,password,role,manager_email",
		"alice@example.com,pw123456,user,nobody@example.com",
	}, "\n")

	if _, err := f.svc.BulkUploadUsers(context.Background(), admin.ID, strings.NewReader(csv)); err == nil {
		t.Fatal("expected unknown manager_email to fail the upload")
	}
}

func TestBulkUploadRequiresColumns(t *testing.T) {
	f := newUserFixture()
	admin, err := f.svc.Register(context.Background(), RegisterUserRequest{
		Name: "Admin", Email: "admin@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	csv := "email,password\nalice@example.com,pw123456"
	if _, err := f.svc.BulkUploadUsers(context.Background(), admin.ID, strings.NewReader(csv)); err == nil {
		t.Fatal("expected missing role column to fail")
	}
}
