package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"trackly/internal/model"
	"trackly/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type RegisterUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	ManagerID *string `json:"manager_id"`
	CreatedAt string  `json:"created_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUserRole(ctx context.Context, id string, actorID string, req UpdateRoleRequest) (*UserResponse, error)
	BulkUploadUsers(ctx context.Context, actorID string, r io.Reader) (int, error)
}

type userService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

// NewUserService returns a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) UserService {
	return &userService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		auditRepo: auditRepo,
		txManager: txManager,
	}
}

// Helper: check if role is allowed
func validateRole(role string) bool {
	return role == model.RoleUser || role == model.RoleApprover ||
		role == model.RoleFinance || role == model.RoleAdmin
}

// Helper: parse model to standard json API response
func mapToUserResponse(user *model.User) *UserResponse {
	resp := &UserResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.ManagerID != nil {
		s := user.ManagerID.String()
		resp.ManagerID = &s
	}
	return resp
}

// Register creates a new account. The very first user in an empty registry is
// auto-elevated to admin; everyone after that starts as a plain user.
func (s *userService) Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Name:     req.Name,
		Email:    email,
		Password: string(hashedPassword),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		count, countErr := s.userRepo.Count(txCtx)
		if countErr != nil {
			return fmt.Errorf("failed to count users: %w", countErr)
		}
		if count == 0 {
			user.Role = model.RoleAdmin
		} else {
			user.Role = model.RoleUser
		}

		if createErr := s.userRepo.Create(txCtx, user); createErr != nil {
			return fmt.Errorf("failed to create user: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{"role": user.Role})
		audit := &model.AuditLog{
			UserID:     &user.ID,
			Action:     model.ActionRegisterUser,
			EntityID:   user.ID.String(),
			EntityName: user.Email,
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	return mapToUserResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.tokenRepo.GetByToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.tokenRepo.Delete(ctx, stored.Token)
		return nil, errors.New("refresh token expired")
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	// Rotate: the old token is single-use.
	if err := s.tokenRepo.Delete(ctx, stored.Token); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})

	// Use same fallback strategy as middleware for simplicity here or get from env centrally
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString() + uuid.NewString(),
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := s.tokenRepo.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{Token: tokenString, RefreshToken: refresh.Token}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return mapToUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.userRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	var responses []UserResponse
	for i := range users {
		responses = append(responses, *mapToUserResponse(&users[i]))
	}

	return responses, total, nil
}

func (s *userService) UpdateUserRole(ctx context.Context, id string, actorID string, req UpdateRoleRequest) (*UserResponse, error) {
	if !validateRole(req.Role) {
		return nil, errors.New("invalid role: must be user, approver, finance, or admin")
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		target, findErr := s.userRepo.GetByID(txCtx, uid)
		if findErr != nil {
			return errors.New("user not found")
		}
		target.Role = req.Role
		if updateErr := s.userRepo.Update(txCtx, target); updateErr != nil {
			return fmt.Errorf("failed to update user: %w", updateErr)
		}

		var actorUUID *uuid.UUID
		if parsed, parseErr := uuid.Parse(actorID); parseErr == nil {
			actorUUID = &parsed
		}
		details, _ := json.Marshal(map[string]interface{}{"role": req.Role})
		audit := &model.AuditLog{
			UserID:     actorUUID,
			Action:     model.ActionUpdateUserRole,
			EntityID:   target.ID.String(),
			EntityName: target.Email,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		user = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	return mapToUserResponse(user), nil
}

// BulkUploadUsers ingests a CSV of email,password,role with optional name and
// manager_email columns. Rows upsert by email; manager_email must resolve to
// an existing user (rows earlier in the same file count). All-or-nothing.
func (s *userService) BulkUploadUsers(ctx context.Context, actorID string, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("could not parse file: %w", err)
	}
	if len(records) < 2 {
		return 0, errors.New("file has no data rows")
	}

	cols := make(map[string]int)
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"email", "password", "role"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("missing column: %s", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	count := 0
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i, row := range records[1:] {
			email := strings.ToLower(field(row, "email"))
			password := field(row, "password")
			role := strings.ToLower(field(row, "role"))
			if email == "" || password == "" {
				return fmt.Errorf("missing email or password in row %d", i+2)
			}
			if !validateRole(role) {
				return fmt.Errorf("invalid role %q in row %d", role, i+2)
			}

			hashed, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if hashErr != nil {
				return errors.New("failed to hash password")
			}

			user, findErr := s.userRepo.GetByEmail(txCtx, email)
			isNew := findErr != nil
			if isNew {
				user = &model.User{Email: email}
			}
			user.Password = string(hashed)
			user.Role = role
			if name := field(row, "name"); name != "" {
				user.Name = name
			}

			if mgrEmail := strings.ToLower(field(row, "manager_email")); mgrEmail != "" {
				manager, mgrErr := s.userRepo.GetByEmail(txCtx, mgrEmail)
				if mgrErr != nil {
					return fmt.Errorf("manager %q not found in row %d", mgrEmail, i+2)
				}
				user.ManagerID = &manager.ID
			}

			if isNew {
				if createErr := s.userRepo.Create(txCtx, user); createErr != nil {
					return fmt.Errorf("failed to create user %s: %w", email, createErr)
				}
			} else {
				if updateErr := s.userRepo.Update(txCtx, user); updateErr != nil {
					return fmt.Errorf("failed to update user %s: %w", email, updateErr)
				}
			}
			count++
		}

		var actorUUID *uuid.UUID
		if parsed, parseErr := uuid.Parse(actorID); parseErr == nil {
			actorUUID = &parsed
		}
		details, _ := json.Marshal(map[string]interface{}{"count": count})
		audit := &model.AuditLog{
			UserID:  actorUUID,
			Action:  model.ActionBulkUploadUser,
			Details: string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}
