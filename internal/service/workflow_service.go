package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trackly/internal/model"
	"trackly/internal/repository"
	ws "trackly/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Workflow error kinds. Each aborts the whole operation; no transition ever
// leaves partial state behind.
var (
	ErrNotOwner              = errors.New("acting user does not own this expense")
	ErrInvalidState          = errors.New("operation not allowed in current expense state")
	ErrNoApproverConfigured  = errors.New("no approver configured for this account")
	ErrNotAuthorizedApprover = errors.New("acting user is not the current approver")
	ErrNothingToApprove      = errors.New("no submissions found to approve")
	ErrNothingToReject       = errors.New("no submissions found to reject")
)

// --- DTOs ---

// ExpenseReport groups one owner's expenses for approver dashboards.
type ExpenseReport struct {
	OwnerID     string            `json:"owner_id"`
	UserName    string            `json:"user_name"`
	UserEmail   string            `json:"user_email"`
	ItemsCount  int               `json:"items_count"`
	TotalAmount string            `json:"total_amount"`
	SubmittedAt string            `json:"submitted_at"`
	Expenses    []ExpenseResponse `json:"expenses"`
}

// WorkflowEvent is the websocket payload pushed after a committed transition.
type WorkflowEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// --- Interface ---

// WorkflowService is the approval engine: it resolves who must approve an
// expense, advances it one chain link at a time, and writes the paired
// notifications and audit rows in the same transaction as every transition.
type WorkflowService interface {
	Submit(ctx context.Context, expenseID string, userID string) (ExpenseResponse, error)
	Approve(ctx context.Context, expenseID string, userID string) (ExpenseResponse, error)
	Reject(ctx context.Context, expenseID string, userID string, reason string) (ExpenseResponse, error)
	ApproveAllForOwner(ctx context.Context, ownerID string, userID string) ([]ExpenseResponse, error)
	RejectAllForOwner(ctx context.Context, ownerID string, userID string, reason string) ([]ExpenseResponse, error)
	PendingReports(ctx context.Context, userID string) ([]ExpenseReport, error)
	ApprovedReports(ctx context.Context) ([]ExpenseReport, error)
	BuildReports(ctx context.Context, expenses []model.Expense) ([]ExpenseReport, error)
}

type workflowService struct {
	expenseRepo repository.ExpenseRepository
	userRepo    repository.UserRepository
	notifRepo   repository.NotificationRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	directory   DirectoryService
	hub         *ws.Hub // optional, nil in tests
}

func NewWorkflowService(
	expenseRepo repository.ExpenseRepository,
	userRepo repository.UserRepository,
	notifRepo repository.NotificationRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	directory DirectoryService,
	hub *ws.Hub,
) WorkflowService {
	return &workflowService{
		expenseRepo: expenseRepo,
		userRepo:    userRepo,
		notifRepo:   notifRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		directory:   directory,
		hub:         hub,
	}
}

// --- Implementation ---

// Submit pushes a draft into the approval chain: the owner's immediate
// manager becomes the outstanding approver.
func (s *workflowService) Submit(ctx context.Context, expenseID string, userID string) (ExpenseResponse, error) {
	expID, actorID, err := parseIDPair(expenseID, userID)
	if err != nil {
		return ExpenseResponse{}, err
	}

	var result model.Expense
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		expense, findErr := s.expenseRepo.FindByIDForUpdate(txCtx, expID)
		if findErr != nil {
			return fmt.Errorf("expense not found: %w", findErr)
		}
		if expense.OwnerID != actorID {
			return ErrNotOwner
		}
		if expense.Status != model.StatusDraft {
			return fmt.Errorf("%w: only draft expenses can be submitted", ErrInvalidState)
		}

		owner, ownerErr := s.userRepo.GetByID(txCtx, actorID)
		if ownerErr != nil {
			return fmt.Errorf("owner not found: %w", ownerErr)
		}
		mgr, mgrErr := s.directory.ImmediateManager(txCtx, owner)
		if mgrErr != nil {
			return mgrErr
		}
		if mgr == nil {
			return ErrNoApproverConfigured
		}

		expense.ApproverID = &mgr.ID
		expense.Status = model.StatusSubmitted
		if updateErr := s.expenseRepo.Update(txCtx, expense); updateErr != nil {
			return fmt.Errorf("failed to update expense: %w", updateErr)
		}

		if notifErr := s.notify(txCtx, owner.ID, model.NotifTypeSubmission,
			"Expense Submitted",
			fmt.Sprintf("You submitted expense %s for approval.", expense.ID)); notifErr != nil {
			return notifErr
		}
		if notifErr := s.notify(txCtx, mgr.ID, model.NotifTypeSubmission,
			"New Expense Submitted",
			fmt.Sprintf("%s submitted expense %s.", owner.Email, expense.ID)); notifErr != nil {
			return notifErr
		}

		if auditErr := s.audit(txCtx, actorID, model.ActionSubmitExpense, expense.ID.String(), expense.Vendor, map[string]interface{}{
			"approver_id": mgr.ID.String(),
			"amount":      expense.Amount.StringFixed(4),
		}); auditErr != nil {
			return auditErr
		}

		result = *expense
		return nil
	})
	if err != nil {
		return ExpenseResponse{}, err
	}

	s.publish("expense_submitted", &result)
	return toExpenseResponse(result), nil
}

// Approve records one chain link's sign-off. The owner's chain is recomputed
// and the expense is re-routed to the link after the acting user, or
// finalized when the actor tops the chain. The chain lookup only answers
// "who comes after me": authority to act comes solely from holding the
// approver reference, so a hierarchy edit mid-flight never invalidates the
// current approver. An actor missing from the recomputed chain finalizes.
func (s *workflowService) Approve(ctx context.Context, expenseID string, userID string) (ExpenseResponse, error) {
	expID, actorID, err := parseIDPair(expenseID, userID)
	if err != nil {
		return ExpenseResponse{}, err
	}

	var result model.Expense
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		expense, actor, validateErr := s.lockPending(txCtx, expID, actorID)
		if validateErr != nil {
			return validateErr
		}

		owner, ownerErr := s.userRepo.GetByID(txCtx, expense.OwnerID)
		if ownerErr != nil {
			return fmt.Errorf("owner not found: %w", ownerErr)
		}
		chain, chainErr := s.directory.ApprovalChain(txCtx, owner)
		if chainErr != nil {
			return chainErr
		}

		next := nextInChain(chain, actorID)
		if next != nil {
			expense.ApproverID = &next.ID
		} else {
			expense.ApproverID = nil
			expense.Status = model.StatusApproved
		}
		if updateErr := s.expenseRepo.Update(txCtx, expense); updateErr != nil {
			return fmt.Errorf("failed to update expense: %w", updateErr)
		}

		// The owner hears about every link's approval, not only the final one.
		if notifErr := s.notify(txCtx, actor.ID, model.NotifTypeApproval,
			"Expense Approved",
			fmt.Sprintf("You approved expense %s.", expense.ID)); notifErr != nil {
			return notifErr
		}
		if notifErr := s.notify(txCtx, owner.ID, model.NotifTypeApproval,
			"Your Expense Approved",
			fmt.Sprintf("Your expense %s was approved by %s.", expense.ID, actor.Email)); notifErr != nil {
			return notifErr
		}

		details := map[string]interface{}{"final": expense.Status == model.StatusApproved}
		if next != nil {
			details["next_approver_id"] = next.ID.String()
		}
		if auditErr := s.audit(txCtx, actorID, model.ActionApproveExpense, expense.ID.String(), expense.Vendor, details); auditErr != nil {
			return auditErr
		}

		result = *expense
		return nil
	})
	if err != nil {
		return ExpenseResponse{}, err
	}

	s.publish("expense_approved", &result)
	return toExpenseResponse(result), nil
}

// Reject terminates the chain unconditionally. Chain position is irrelevant
// to rejection.
func (s *workflowService) Reject(ctx context.Context, expenseID string, userID string, reason string) (ExpenseResponse, error) {
	expID, actorID, err := parseIDPair(expenseID, userID)
	if err != nil {
		return ExpenseResponse{}, err
	}

	var result model.Expense
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		expense, actor, validateErr := s.lockPending(txCtx, expID, actorID)
		if validateErr != nil {
			return validateErr
		}

		expense.ApproverID = nil
		expense.Status = model.StatusRejected
		if updateErr := s.expenseRepo.Update(txCtx, expense); updateErr != nil {
			return fmt.Errorf("failed to update expense: %w", updateErr)
		}

		if notifErr := s.notify(txCtx, expense.OwnerID, model.NotifTypeRejection,
			"Expense Rejected",
			fmt.Sprintf("Your expense %s was rejected. Reason: %s", expense.ID, reason)); notifErr != nil {
			return notifErr
		}
		if notifErr := s.notify(txCtx, actor.ID, model.NotifTypeRejection,
			"Submission Rejected",
			fmt.Sprintf("You rejected expense %s. Reason: %s", expense.ID, reason)); notifErr != nil {
			return notifErr
		}

		if auditErr := s.audit(txCtx, actorID, model.ActionRejectExpense, expense.ID.String(), expense.Vendor, map[string]interface{}{
			"reason": reason,
		}); auditErr != nil {
			return auditErr
		}

		result = *expense
		return nil
	})
	if err != nil {
		return ExpenseResponse{}, err
	}

	s.publish("expense_rejected", &result)
	return toExpenseResponse(result), nil
}

// ApproveAllForOwner finalizes everything currently on the actor's desk for
// one employee. Unlike Approve it never escalates up the chain: the batch
// verb is a shortcut for "approve my whole queue for this person" and
// dashboards depend on that asymmetry.
func (s *workflowService) ApproveAllForOwner(ctx context.Context, ownerID string, userID string) ([]ExpenseResponse, error) {
	ownID, actorID, err := parseIDPair(ownerID, userID)
	if err != nil {
		return nil, err
	}

	var approved []model.Expense
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		items, listErr := s.expenseRepo.ListPendingForOwnerAndApproverForUpdate(txCtx, ownID, actorID)
		if listErr != nil {
			return fmt.Errorf("failed to select pending expenses: %w", listErr)
		}
		if len(items) == 0 {
			return ErrNothingToApprove
		}

		owner, ownerErr := s.userRepo.GetByID(txCtx, ownID)
		if ownerErr != nil {
			return fmt.Errorf("owner not found: %w", ownerErr)
		}

		for i := range items {
			items[i].Status = model.StatusApproved
			items[i].ApproverID = nil
			if updateErr := s.expenseRepo.Update(txCtx, &items[i]); updateErr != nil {
				return fmt.Errorf("failed to update expense: %w", updateErr)
			}
			if notifErr := s.notify(txCtx, items[i].OwnerID, model.NotifTypeApproval,
				"Expense Approved",
				fmt.Sprintf("Your expense %s was approved.", items[i].ID)); notifErr != nil {
				return notifErr
			}
		}

		if notifErr := s.notify(txCtx, actorID, model.NotifTypeApproval,
			"Report Approved",
			fmt.Sprintf("You approved all pending expenses for %s.", owner.Email)); notifErr != nil {
			return notifErr
		}

		if auditErr := s.audit(txCtx, actorID, model.ActionApproveReport, ownID.String(), owner.Email, map[string]interface{}{
			"items_count": len(items),
		}); auditErr != nil {
			return auditErr
		}

		approved = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]ExpenseResponse, 0, len(approved))
	for i := range approved {
		s.publish("expense_approved", &approved[i])
		result = append(result, toExpenseResponse(approved[i]))
	}
	return result, nil
}

// RejectAllForOwner rejects the actor's whole pending queue for one employee.
func (s *workflowService) RejectAllForOwner(ctx context.Context, ownerID string, userID string, reason string) ([]ExpenseResponse, error) {
	ownID, actorID, err := parseIDPair(ownerID, userID)
	if err != nil {
		return nil, err
	}

	var rejected []model.Expense
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		items, listErr := s.expenseRepo.ListPendingForOwnerAndApproverForUpdate(txCtx, ownID, actorID)
		if listErr != nil {
			return fmt.Errorf("failed to select pending expenses: %w", listErr)
		}
		if len(items) == 0 {
			return ErrNothingToReject
		}

		owner, ownerErr := s.userRepo.GetByID(txCtx, ownID)
		if ownerErr != nil {
			return fmt.Errorf("owner not found: %w", ownerErr)
		}

		for i := range items {
			items[i].Status = model.StatusRejected
			items[i].ApproverID = nil
			if updateErr := s.expenseRepo.Update(txCtx, &items[i]); updateErr != nil {
				return fmt.Errorf("failed to update expense: %w", updateErr)
			}
			if notifErr := s.notify(txCtx, items[i].OwnerID, model.NotifTypeRejection,
				"Expense Rejected",
				fmt.Sprintf("Your expense %s was rejected. Reason: %s", items[i].ID, reason)); notifErr != nil {
				return notifErr
			}
		}

		if notifErr := s.notify(txCtx, actorID, model.NotifTypeRejection,
			"Report Rejected",
			fmt.Sprintf("You rejected all pending expenses for %s. Reason: %s", owner.Email, reason)); notifErr != nil {
			return notifErr
		}

		if auditErr := s.audit(txCtx, actorID, model.ActionRejectReport, ownID.String(), owner.Email, map[string]interface{}{
			"items_count": len(items),
			"reason":      reason,
		}); auditErr != nil {
			return auditErr
		}

		rejected = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]ExpenseResponse, 0, len(rejected))
	for i := range rejected {
		s.publish("expense_rejected", &rejected[i])
		result = append(result, toExpenseResponse(rejected[i]))
	}
	return result, nil
}

// PendingReports groups the expenses currently awaiting the acting approver.
func (s *workflowService) PendingReports(ctx context.Context, userID string) ([]ExpenseReport, error) {
	approverID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	expenses, err := s.expenseRepo.ListPendingForApprover(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending expenses: %w", err)
	}
	return s.BuildReports(ctx, expenses)
}

// ApprovedReports groups fully signed-off expenses (approver cleared).
func (s *workflowService) ApprovedReports(ctx context.Context) ([]ExpenseReport, error) {
	expenses, err := s.expenseRepo.ListFinalized(ctx, model.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approved expenses: %w", err)
	}
	return s.BuildReports(ctx, expenses)
}

// BuildReports groups a flat expense list into one report per owner: item
// count, decimal sum of amounts, and the earliest created_at as the report's
// submitted-at. Owners that no longer resolve are skipped; this leniency is
// read-side only, never a workflow path.
func (s *workflowService) BuildReports(ctx context.Context, expenses []model.Expense) ([]ExpenseReport, error) {
	var order []uuid.UUID
	grouped := make(map[uuid.UUID][]model.Expense)
	for _, e := range expenses {
		if _, ok := grouped[e.OwnerID]; !ok {
			order = append(order, e.OwnerID)
		}
		grouped[e.OwnerID] = append(grouped[e.OwnerID], e)
	}

	reports := make([]ExpenseReport, 0, len(order))
	for _, ownerID := range order {
		owner, err := s.userRepo.GetByID(ctx, ownerID)
		if err != nil {
			continue
		}

		items := grouped[ownerID]
		total := decimal.Zero
		earliest := items[0].CreatedAt
		mapped := make([]ExpenseResponse, 0, len(items))
		for _, e := range items {
			total = total.Add(e.Amount)
			if e.CreatedAt.Before(earliest) {
				earliest = e.CreatedAt
			}
			mapped = append(mapped, toExpenseResponse(e))
		}

		reports = append(reports, ExpenseReport{
			OwnerID:     owner.ID.String(),
			UserName:    owner.Name,
			UserEmail:   owner.Email,
			ItemsCount:  len(items),
			TotalAmount: total.StringFixed(4),
			SubmittedAt: earliest.Format(time.RFC3339),
			Expenses:    mapped,
		})
	}
	return reports, nil
}

// --- Helpers ---

// lockPending loads the expense row under a FOR UPDATE lock and validates
// that it is awaiting exactly the acting user.
func (s *workflowService) lockPending(ctx context.Context, expenseID, actorID uuid.UUID) (*model.Expense, *model.User, error) {
	expense, err := s.expenseRepo.FindByIDForUpdate(ctx, expenseID)
	if err != nil {
		return nil, nil, fmt.Errorf("expense not found: %w", err)
	}
	if expense.Status != model.StatusSubmitted {
		return nil, nil, fmt.Errorf("%w: expense is %s, not submitted", ErrInvalidState, expense.Status)
	}
	if expense.ApproverID == nil || *expense.ApproverID != actorID {
		return nil, nil, ErrNotAuthorizedApprover
	}
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("acting user not found: %w", err)
	}
	return expense, actor, nil
}

// nextInChain returns the chain entry after actorID, or nil when the actor is
// the last link or absent from the chain.
func nextInChain(chain []model.User, actorID uuid.UUID) *model.User {
	for i := range chain {
		if chain[i].ID == actorID {
			if i+1 < len(chain) {
				return &chain[i+1]
			}
			return nil
		}
	}
	return nil
}

func (s *workflowService) notify(ctx context.Context, userID uuid.UUID, notifType, title, message string) error {
	notif := &model.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
	}
	if err := s.notifRepo.Create(ctx, notif); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *workflowService) audit(ctx context.Context, actorID uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// publish echoes a committed transition to websocket clients. The send is
// non-blocking: notifications are the durable record, the hub is live sugar.
func (s *workflowService) publish(event string, expense *model.Expense) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(WorkflowEvent{
		Event: event,
		Data: map[string]interface{}{
			"expense_id": expense.ID.String(),
			"owner_id":   expense.OwnerID.String(),
			"status":     expense.Status,
		},
	})
	if err != nil {
		return
	}
	select {
	case s.hub.Broadcast <- payload:
	default:
	}
}

func parseIDPair(entityID, userID string) (uuid.UUID, uuid.UUID, error) {
	eid, err := uuid.Parse(entityID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid id: %w", err)
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	return eid, uid, nil
}
