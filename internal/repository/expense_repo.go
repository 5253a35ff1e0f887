package repository

import (
	"context"

	"trackly/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExpenseRepository defines the interface for data access of Expense entities.
// The ForUpdate variants take row locks and are only meaningful inside a
// TransactionManager transaction; the workflow service relies on them to keep
// concurrent approvals on the same record from interleaving.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Expense, error)
	ListByOwnerAndStatus(ctx context.Context, ownerID uuid.UUID, status string) ([]model.Expense, error)
	ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]model.Expense, error)
	ListPendingForOwnerAndApproverForUpdate(ctx context.Context, ownerID, approverID uuid.UUID) ([]model.Expense, error)
	ListFinalized(ctx context.Context, status string) ([]model.Expense, error)
	Update(ctx context.Context, expense *model.Expense) error
	CreateLineItem(ctx context.Context, item *model.LineItem) error
	UpdateLineItem(ctx context.Context, item *model.LineItem) error
	DeleteLineItem(ctx context.Context, id uuid.UUID) error
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Create(expense).Error
}

func (r *expenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	if err := GetDB(ctx, r.db).Preload("LineItems").First(&expense, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&expense, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Expense, error) {
	var expenses []model.Expense
	err := GetDB(ctx, r.db).Preload("LineItems").
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&expenses).Error
	return expenses, err
}

func (r *expenseRepository) ListByOwnerAndStatus(ctx context.Context, ownerID uuid.UUID, status string) ([]model.Expense, error) {
	var expenses []model.Expense
	err := GetDB(ctx, r.db).Preload("LineItems").Preload("Owner").
		Where("owner_id = ? AND status = ?", ownerID, status).
		Order("created_at asc").
		Find(&expenses).Error
	return expenses, err
}

func (r *expenseRepository) ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]model.Expense, error) {
	var expenses []model.Expense
	err := GetDB(ctx, r.db).Preload("LineItems").
		Where("status = ? AND approver_id = ?", model.StatusSubmitted, approverID).
		Order("created_at asc").
		Find(&expenses).Error
	return expenses, err
}

// ListPendingForOwnerAndApproverForUpdate locks one owner's batch of pending
// rows for the duration of the surrounding transaction.
func (r *expenseRepository) ListPendingForOwnerAndApproverForUpdate(ctx context.Context, ownerID, approverID uuid.UUID) ([]model.Expense, error) {
	var expenses []model.Expense
	err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND status = ? AND approver_id = ?", ownerID, model.StatusSubmitted, approverID).
		Order("created_at asc").
		Find(&expenses).Error
	return expenses, err
}

func (r *expenseRepository) ListFinalized(ctx context.Context, status string) ([]model.Expense, error) {
	var expenses []model.Expense
	err := GetDB(ctx, r.db).Preload("LineItems").
		Where("status = ? AND approver_id IS NULL", status).
		Order("created_at asc").
		Find(&expenses).Error
	return expenses, err
}

func (r *expenseRepository) Update(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Omit("LineItems").Save(expense).Error
}

func (r *expenseRepository) CreateLineItem(ctx context.Context, item *model.LineItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *expenseRepository) UpdateLineItem(ctx context.Context, item *model.LineItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *expenseRepository) DeleteLineItem(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.LineItem{}).Error
}
