package service

import (
	"context"
	"errors"
	"fmt"

	"trackly/internal/model"
	"trackly/internal/repository"

	"github.com/google/uuid"
)

var ErrExportForbidden = errors.New("not allowed to export another user's expenses")

type ExportRow struct {
	ExpenseResponse
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
}

// ExportService is the read model fed to downstream accounting tooling: fully
// approved expenses for one owner, with owner identity denormalized onto each
// row. Owners may pull their own rows; finance and admin may pull anyone's.
type ExportService interface {
	ApprovedExpenses(ctx context.Context, ownerID, requesterID, requesterRole string) ([]ExportRow, error)
}

type exportService struct {
	expenseRepo repository.ExpenseRepository
	userRepo    repository.UserRepository
}

func NewExportService(expenseRepo repository.ExpenseRepository, userRepo repository.UserRepository) ExportService {
	return &exportService{expenseRepo: expenseRepo, userRepo: userRepo}
}

func (s *exportService) ApprovedExpenses(ctx context.Context, ownerID, requesterID, requesterRole string) ([]ExportRow, error) {
	if ownerID != requesterID && requesterRole != model.RoleFinance && requesterRole != model.RoleAdmin {
		return nil, ErrExportForbidden
	}

	oid, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id: %w", err)
	}

	owner, err := s.userRepo.GetByID(ctx, oid)
	if err != nil {
		return nil, errors.New("owner not found")
	}

	expenses, err := s.expenseRepo.ListByOwnerAndStatus(ctx, oid, model.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approved expenses: %w", err)
	}

	rows := make([]ExportRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, ExportRow{
			ExpenseResponse: toExpenseResponse(e),
			OwnerName:       owner.Name,
			OwnerEmail:      owner.Email,
		})
	}
	return rows, nil
}
