package service

import (
	"context"
	"time"

	"trackly/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory repository fakes. They mirror the gorm-backed implementations
// closely enough for service-level tests: not-found reads surface
// gorm.ErrRecordNotFound and writes store copies, never aliases.

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- users ---

type fakeUserRepo struct {
	users map[uuid.UUID]model.User
	order []uuid.UUID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users[user.ID] = *user
	r.order = append(r.order, user.ID)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(_ context.Context, page, limit int) ([]model.User, int64, error) {
	start := (page - 1) * limit
	var out []model.User
	for i := start; i < len(r.order) && i < start+limit; i++ {
		out = append(out, r.users[r.order[i]])
	}
	return out, int64(len(r.order)), nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.users, id)
	return nil
}

// --- expenses ---

type fakeExpenseRepo struct {
	expenses map[uuid.UUID]model.Expense
	order    []uuid.UUID
}

func newFakeExpenseRepo() *fakeExpenseRepo {
	return &fakeExpenseRepo{expenses: make(map[uuid.UUID]model.Expense)}
}

func (r *fakeExpenseRepo) Create(_ context.Context, expense *model.Expense) error {
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	r.expenses[expense.ID] = *expense
	r.order = append(r.order, expense.ID)
	return nil
}

func (r *fakeExpenseRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Expense, error) {
	e, ok := r.expenses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := e
	copied.LineItems = append([]model.LineItem(nil), e.LineItems...)
	return &copied, nil
}

func (r *fakeExpenseRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeExpenseRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Expense, error) {
	var out []model.Expense
	for _, id := range r.order {
		if e := r.expenses[id]; e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExpenseRepo) ListByOwnerAndStatus(_ context.Context, ownerID uuid.UUID, status string) ([]model.Expense, error) {
	var out []model.Expense
	for _, id := range r.order {
		if e := r.expenses[id]; e.OwnerID == ownerID && e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExpenseRepo) ListPendingForApprover(_ context.Context, approverID uuid.UUID) ([]model.Expense, error) {
	var out []model.Expense
	for _, id := range r.order {
		e := r.expenses[id]
		if e.Status == model.StatusSubmitted && e.ApproverID != nil && *e.ApproverID == approverID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExpenseRepo) ListPendingForOwnerAndApproverForUpdate(_ context.Context, ownerID, approverID uuid.UUID) ([]model.Expense, error) {
	var out []model.Expense
	for _, id := range r.order {
		e := r.expenses[id]
		if e.OwnerID == ownerID && e.Status == model.StatusSubmitted && e.ApproverID != nil && *e.ApproverID == approverID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExpenseRepo) ListFinalized(_ context.Context, status string) ([]model.Expense, error) {
	var out []model.Expense
	for _, id := range r.order {
		e := r.expenses[id]
		if e.Status == status && e.ApproverID == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExpenseRepo) Update(_ context.Context, expense *model.Expense) error {
	stored, ok := r.expenses[expense.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *expense
	copied.LineItems = stored.LineItems // Update omits line items, like the gorm implementation
	r.expenses[expense.ID] = copied
	return nil
}

func (r *fakeExpenseRepo) CreateLineItem(_ context.Context, item *model.LineItem) error {
	e, ok := r.expenses[item.ExpenseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	e.LineItems = append(e.LineItems, *item)
	r.expenses[item.ExpenseID] = e
	return nil
}

func (r *fakeExpenseRepo) UpdateLineItem(_ context.Context, item *model.LineItem) error {
	e, ok := r.expenses[item.ExpenseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range e.LineItems {
		if e.LineItems[i].ID == item.ID {
			e.LineItems[i] = *item
			r.expenses[item.ExpenseID] = e
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeExpenseRepo) DeleteLineItem(_ context.Context, id uuid.UUID) error {
	for expID, e := range r.expenses {
		for i := range e.LineItems {
			if e.LineItems[i].ID == id {
				e.LineItems = append(e.LineItems[:i], e.LineItems[i+1:]...)
				r.expenses[expID] = e
				return nil
			}
		}
	}
	return nil
}

// --- notifications ---

type fakeNotificationRepo struct {
	notifs []model.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, notif *model.Notification) error {
	if notif.ID == uuid.Nil {
		notif.ID = uuid.New()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}
	r.notifs = append(r.notifs, *notif)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range r.notifs {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID uuid.UUID) (int64, error) {
	for i := range r.notifs {
		if r.notifs[i].ID == id && r.notifs[i].UserID == userID {
			r.notifs[i].Read = true
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	for i := range r.notifs {
		if r.notifs[i].UserID == userID {
			r.notifs[i].Read = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id, userID uuid.UUID) (int64, error) {
	for i := range r.notifs {
		if r.notifs[i].ID == id && r.notifs[i].UserID == userID {
			r.notifs = append(r.notifs[:i], r.notifs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// countFor counts notifications held by one recipient.
func (r *fakeNotificationRepo) countFor(userID uuid.UUID) int {
	count := 0
	for _, n := range r.notifs {
		if n.UserID == userID {
			count++
		}
	}
	return count
}

// --- audit ---

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	start := (page - 1) * limit
	var out []model.AuditLog
	for i := start; i < len(r.entries) && i < start+limit; i++ {
		out = append(out, r.entries[i])
	}
	return out, int64(len(r.entries)), nil
}

// --- refresh tokens ---

type fakeRefreshTokenRepo struct {
	tokens map[string]model.RefreshToken
}

func newFakeRefreshTokenRepo() *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{tokens: make(map[string]model.RefreshToken)}
}

func (r *fakeRefreshTokenRepo) Create(_ context.Context, token *model.RefreshToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	r.tokens[token.Token] = *token
	return nil
}

func (r *fakeRefreshTokenRepo) GetByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	t, ok := r.tokens[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := t
	return &copied, nil
}

func (r *fakeRefreshTokenRepo) Delete(_ context.Context, token string) error {
	delete(r.tokens, token)
	return nil
}
