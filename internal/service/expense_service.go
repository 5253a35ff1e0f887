package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trackly/internal/model"
	"trackly/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

// LineItemInput carries one receipt line. ID is set when editing an existing
// row and empty for new rows.
type LineItemInput struct {
	ID          string `json:"id"`
	Description string `json:"description" binding:"required"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price" binding:"required"`
}

// CreateDraftRequest is the shape the receipt ingestion pipeline hands over
// after OCR and field extraction. Monetary fields arrive as decimal strings.
type CreateDraftRequest struct {
	Vendor        string          `json:"vendor" binding:"required"`
	Date          string          `json:"date" binding:"required"`
	Amount        string          `json:"amount" binding:"required"`
	Currency      string          `json:"currency" binding:"required"`
	Category      string          `json:"category" binding:"required"`
	GLCode        *string         `json:"gl_code"`
	Description   string          `json:"description"`
	ImageFilename string          `json:"image_filename"`
	LineItems     []LineItemInput `json:"line_items" binding:"dive"`
}

type UpdateDraftRequest struct {
	Vendor      string          `json:"vendor" binding:"required"`
	Date        string          `json:"date" binding:"required"`
	Amount      string          `json:"amount" binding:"required"`
	Currency    string          `json:"currency" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	GLCode      *string         `json:"gl_code"`
	Description string          `json:"description"`
	LineItems   []LineItemInput `json:"line_items" binding:"dive"`
}

type LineItemResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    *string `json:"quantity"`
	UnitPrice   *string `json:"unit_price"`
	TotalPrice  string  `json:"total_price"`
}

type ExpenseResponse struct {
	ID            string             `json:"id"`
	OwnerID       string             `json:"owner_id"`
	ApproverID    *string            `json:"approver_id"`
	Vendor        string             `json:"vendor"`
	Date          string             `json:"date"`
	Amount        string             `json:"amount"`
	Currency      string             `json:"currency"`
	Category      string             `json:"category"`
	GLCode        *string            `json:"gl_code"`
	Description   string             `json:"description"`
	ImageFilename string             `json:"image_filename"`
	Status        string             `json:"status"`
	LineItems     []LineItemResponse `json:"line_items"`
	CreatedAt     string             `json:"created_at"`
}

// --- Interface ---

type ExpenseService interface {
	CreateDraft(ctx context.Context, userID string, req CreateDraftRequest) (ExpenseResponse, error)
	GetDraft(ctx context.Context, id string, userID string) (ExpenseResponse, error)
	UpdateDraft(ctx context.Context, id string, userID string, req UpdateDraftRequest) (ExpenseResponse, error)
	MyExpenses(ctx context.Context, userID string) ([]ExpenseResponse, error)
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ExpenseService {
	return &expenseService{
		expenseRepo: expenseRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *expenseService) CreateDraft(ctx context.Context, userID string, req CreateDraftRequest) (ExpenseResponse, error) {
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("invalid user id: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("invalid amount: %w", err)
	}

	date, err := parseReceiptDate(req.Date)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("invalid date: %w", err)
	}

	expense := model.Expense{
		OwnerID:       ownerID,
		Vendor:        req.Vendor,
		Date:          date,
		Amount:        amount,
		Currency:      req.Currency,
		Category:      req.Category,
		GLCode:        req.GLCode,
		Description:   req.Description,
		ImageFilename: req.ImageFilename,
		Status:        model.StatusDraft,
	}

	// Line-item totals are not reconciled against the expense amount here.
	// The draft stays the owner's scratchpad until submission.
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.expenseRepo.Create(txCtx, &expense); createErr != nil {
			return fmt.Errorf("failed to create expense: %w", createErr)
		}

		for _, in := range req.LineItems {
			item, itemErr := buildLineItem(expense.ID, in)
			if itemErr != nil {
				return itemErr
			}
			if createErr := s.expenseRepo.CreateLineItem(txCtx, item); createErr != nil {
				return fmt.Errorf("failed to create line item: %w", createErr)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"vendor":   req.Vendor,
			"amount":   req.Amount,
			"currency": req.Currency,
			"category": req.Category,
		})
		audit := &model.AuditLog{
			UserID:     &ownerID,
			Action:     model.ActionCreateExpense,
			EntityID:   expense.ID.String(),
			EntityName: req.Vendor,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return ExpenseResponse{}, err
	}

	created, err := s.expenseRepo.FindByID(ctx, expense.ID)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("failed to reload expense: %w", err)
	}
	return toExpenseResponse(*created), nil
}

func (s *expenseService) GetDraft(ctx context.Context, id string, userID string) (ExpenseResponse, error) {
	expense, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return ExpenseResponse{}, err
	}
	if expense.Status != model.StatusDraft {
		return ExpenseResponse{}, fmt.Errorf("%w: expense is %s, not draft", ErrInvalidState, expense.Status)
	}
	return toExpenseResponse(*expense), nil
}

func (s *expenseService) UpdateDraft(ctx context.Context, id string, userID string, req UpdateDraftRequest) (ExpenseResponse, error) {
	expenseID, err := uuid.Parse(id)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("invalid expense id: %w", err)
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("invalid user id: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("invalid amount: %w", err)
	}
	date, err := parseReceiptDate(req.Date)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("invalid date: %w", err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, lockErr := s.expenseRepo.FindByIDForUpdate(txCtx, expenseID); lockErr != nil {
			return fmt.Errorf("expense not found: %w", lockErr)
		}
		expense, findErr := s.expenseRepo.FindByID(txCtx, expenseID)
		if findErr != nil {
			return fmt.Errorf("expense not found: %w", findErr)
		}
		if expense.OwnerID != actorID {
			return ErrNotOwner
		}
		if expense.Status != model.StatusDraft {
			return fmt.Errorf("%w: expense is %s, not draft", ErrInvalidState, expense.Status)
		}

		expense.Vendor = req.Vendor
		expense.Date = date
		expense.Amount = amount
		expense.Currency = req.Currency
		expense.Category = req.Category
		expense.GLCode = req.GLCode
		expense.Description = req.Description
		if updateErr := s.expenseRepo.Update(txCtx, expense); updateErr != nil {
			return fmt.Errorf("failed to update expense: %w", updateErr)
		}

		if syncErr := s.syncLineItems(txCtx, expense, req.LineItems); syncErr != nil {
			return syncErr
		}

		details, _ := json.Marshal(map[string]interface{}{
			"vendor":     req.Vendor,
			"amount":     req.Amount,
			"line_items": len(req.LineItems),
		})
		audit := &model.AuditLog{
			UserID:     &actorID,
			Action:     model.ActionUpdateDraft,
			EntityID:   expense.ID.String(),
			EntityName: req.Vendor,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return ExpenseResponse{}, err
	}

	updated, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("failed to reload expense: %w", err)
	}
	return toExpenseResponse(*updated), nil
}

// syncLineItems reconciles stored line items against the incoming set:
// rows whose id is echoed back are updated, rows missing from the payload are
// deleted, and id-less entries become new rows.
func (s *expenseService) syncLineItems(ctx context.Context, expense *model.Expense, incoming []LineItemInput) error {
	keep := make(map[uuid.UUID]LineItemInput)
	for _, in := range incoming {
		if in.ID == "" {
			continue
		}
		itemID, err := uuid.Parse(in.ID)
		if err != nil {
			return fmt.Errorf("invalid line item id: %w", err)
		}
		keep[itemID] = in
	}

	for i := range expense.LineItems {
		existing := expense.LineItems[i]
		in, ok := keep[existing.ID]
		if !ok {
			if err := s.expenseRepo.DeleteLineItem(ctx, existing.ID); err != nil {
				return fmt.Errorf("failed to delete line item: %w", err)
			}
			continue
		}
		updated, err := buildLineItem(expense.ID, in)
		if err != nil {
			return err
		}
		updated.ID = existing.ID
		if err := s.expenseRepo.UpdateLineItem(ctx, updated); err != nil {
			return fmt.Errorf("failed to update line item: %w", err)
		}
	}

	for _, in := range incoming {
		if in.ID != "" {
			continue
		}
		item, err := buildLineItem(expense.ID, in)
		if err != nil {
			return err
		}
		if err := s.expenseRepo.CreateLineItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create line item: %w", err)
		}
	}
	return nil
}

func (s *expenseService) MyExpenses(ctx context.Context, userID string) ([]ExpenseResponse, error) {
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	expenses, err := s.expenseRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expenses: %w", err)
	}

	result := make([]ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		result = append(result, toExpenseResponse(e))
	}
	return result, nil
}

func (s *expenseService) findOwned(ctx context.Context, id string, userID string) (*model.Expense, error) {
	expenseID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid expense id: %w", err)
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	expense, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("expense not found: %w", err)
	}
	if expense.OwnerID != actorID {
		return nil, ErrNotOwner
	}
	return expense, nil
}

// --- Helpers ---

// parseReceiptDate accepts RFC3339 first, then the dd/mm/yyyy hh:mm shape the
// extraction pipeline emits for European receipts.
func parseReceiptDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("02/01/2006 15:04", raw)
}

func buildLineItem(expenseID uuid.UUID, in LineItemInput) (*model.LineItem, error) {
	total, err := decimal.NewFromString(in.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid line item total_price: %w", err)
	}
	quantity, err := parseOptionalDecimal(in.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid line item quantity: %w", err)
	}
	unitPrice, err := parseOptionalDecimal(in.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid line item unit_price: %w", err)
	}
	return &model.LineItem{
		ExpenseID:   expenseID,
		Description: in.Description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  total,
	}, nil
}

func parseOptionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(4)
	return &s
}

func toExpenseResponse(e model.Expense) ExpenseResponse {
	resp := ExpenseResponse{
		ID:            e.ID.String(),
		OwnerID:       e.OwnerID.String(),
		Vendor:        e.Vendor,
		Date:          e.Date.Format(time.RFC3339),
		Amount:        e.Amount.StringFixed(4),
		Currency:      e.Currency,
		Category:      e.Category,
		GLCode:        e.GLCode,
		Description:   e.Description,
		ImageFilename: e.ImageFilename,
		Status:        e.Status,
		LineItems:     make([]LineItemResponse, 0, len(e.LineItems)),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}

	if e.ApproverID != nil {
		s := e.ApproverID.String()
		resp.ApproverID = &s
	}
	for _, item := range e.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    decimalPtrString(item.Quantity),
			UnitPrice:   decimalPtrString(item.UnitPrice),
			TotalPrice:  item.TotalPrice.StringFixed(4),
		})
	}
	return resp
}
