package service

import (
	"context"
	"errors"
	"fmt"

	"trackly/internal/model"
	"trackly/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCyclicHierarchy signals malformed directory data: the manager walk
// revisited a user. The walk fails fast instead of looping.
var ErrCyclicHierarchy = errors.New("management hierarchy contains a cycle")

// DirectoryService resolves the management hierarchy above a user. The chain
// is recomputed on every call: the hierarchy may change between workflow
// invocations and routing always follows the current data.
type DirectoryService interface {
	ImmediateManager(ctx context.Context, user *model.User) (*model.User, error)
	ApprovalChain(ctx context.Context, user *model.User) ([]model.User, error)
}

type directoryService struct {
	userRepo repository.UserRepository
}

func NewDirectoryService(userRepo repository.UserRepository) DirectoryService {
	return &directoryService{userRepo: userRepo}
}

// ImmediateManager returns the direct manager, or nil when none is assigned.
// A dangling manager reference (manager row deleted) also reads as "no
// approver configured" rather than an error.
func (s *directoryService) ImmediateManager(ctx context.Context, user *model.User) (*model.User, error) {
	if user.ManagerID == nil {
		return nil, nil
	}
	mgr, err := s.userRepo.GetByID(ctx, *user.ManagerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve manager: %w", err)
	}
	return mgr, nil
}

// ApprovalChain builds the ordered ancestor list [immediate, their manager, …]
// above user. Any user id seen twice during the walk aborts with
// ErrCyclicHierarchy.
func (s *directoryService) ApprovalChain(ctx context.Context, user *model.User) ([]model.User, error) {
	seen := map[uuid.UUID]bool{user.ID: true}

	var chain []model.User
	current := user
	for {
		mgr, err := s.ImmediateManager(ctx, current)
		if err != nil {
			return nil, err
		}
		if mgr == nil {
			return chain, nil
		}
		if seen[mgr.ID] {
			return nil, fmt.Errorf("%w: user %s revisited", ErrCyclicHierarchy, mgr.ID)
		}
		seen[mgr.ID] = true
		chain = append(chain, *mgr)
		current = mgr
	}
}
