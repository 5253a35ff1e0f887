package service

import (
	"context"
	"errors"
	"testing"

	"trackly/internal/model"

	"github.com/google/uuid"
)

type expenseFixture struct {
	expenses *fakeExpenseRepo
	audits   *fakeAuditRepo
	svc      ExpenseService
}

func newExpenseFixture() *expenseFixture {
	expenses := newFakeExpenseRepo()
	audits := &fakeAuditRepo{}
	svc := NewExpenseService(expenses, audits, fakeTxManager{})
	return &expenseFixture{expenses: expenses, audits: audits, svc: svc}
}

func TestCreateDraftWithLineItems(t *testing.T) {
	f := newExpenseFixture()
	owner := uuid.New()

	res, err := f.svc.CreateDraft(context.Background(), owner.String(), CreateDraftRequest{
		Vendor:   "Cafe Milano",
		Date:     "15/02/2026 13:30",
		Amount:   "27.80",
		Currency: "EUR",
		Category: "Meals",
		LineItems: []LineItemInput{
			{Description: "Lunch", Quantity: "2", UnitPrice: "11.40", TotalPrice: "22.80"},
			{Description: "Espresso", TotalPrice: "5.00"},
		},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if res.Status != model.StatusDraft {
		t.Errorf("status = %s, want draft", res.Status)
	}
	if res.Amount != "27.8000" {
		t.Errorf("amount = %s, want 27.8000", res.Amount)
	}
	if len(res.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(res.LineItems))
	}
	if res.LineItems[1].Quantity != nil {
		t.Error("line item without quantity must stay nil")
	}
	if len(f.audits.entries) != 1 || f.audits.entries[0].Action != model.ActionCreateExpense {
		t.Errorf("expected one CREATE_EXPENSE audit row, got %v", f.audits.entries)
	}
}

func TestCreateDraftRejectsBadAmount(t *testing.T) {
	f := newExpenseFixture()

	_, err := f.svc.CreateDraft(context.Background(), uuid.NewString(), CreateDraftRequest{
		Vendor: "X", Date: "2026-02-15T13:30:00Z", Amount: "abc", Currency: "EUR", Category: "Meals",
	})
	if err == nil {
		t.Fatal("expected invalid amount to fail")
	}
}

func TestUpdateDraftSyncsLineItems(t *testing.T) {
	f := newExpenseFixture()
	owner := uuid.New()

	created, err := f.svc.CreateDraft(context.Background(), owner.String(), CreateDraftRequest{
		Vendor:   "Cafe Milano",
		Date:     "2026-02-15T13:30:00Z",
		Amount:   "27.80",
		Currency: "EUR",
		Category: "Meals",
		LineItems: []LineItemInput{
			{Description: "Lunch", TotalPrice: "22.80"},
			{Description: "Espresso", TotalPrice: "5.00"},
		},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	keptID := created.LineItems[0].ID
	updated, err := f.svc.UpdateDraft(context.Background(), created.ID, owner.String(), UpdateDraftRequest{
		Vendor:   "Cafe Milano",
		Date:     "2026-02-15T13:30:00Z",
		Amount:   "30.00",
		Currency: "EUR",
		Category: "Meals",
		LineItems: []LineItemInput{
			{ID: keptID, Description: "Lunch (corrected)", TotalPrice: "25.00"},
			{Description: "Tip", TotalPrice: "5.00"},
		},
	})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}

	if len(updated.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(updated.LineItems))
	}
	byID := make(map[string]LineItemResponse)
	for _, li := range updated.LineItems {
		byID[li.ID] = li
	}
	kept, ok := byID[keptID]
	if !ok {
		t.Fatal("echoed line item id was not preserved")
	}
	if kept.Description != "Lunch (corrected)" || kept.TotalPrice != "25.0000" {
		t.Errorf("kept item not updated: %+v", kept)
	}
	for _, li := range updated.LineItems {
		if li.Description == "Espresso" {
			t.Error("line item missing from payload must be deleted")
		}
	}
}

func TestUpdateDraftRejectsNonDraft(t *testing.T) {
	f := newExpenseFixture()
	owner := uuid.New()

	created, err := f.svc.CreateDraft(context.Background(), owner.String(), CreateDraftRequest{
		Vendor: "X", Date: "2026-02-15T13:30:00Z", Amount: "10.00", Currency: "EUR", Category: "Meals",
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	id := uuid.MustParse(created.ID)
	stored, _ := f.expenses.FindByID(context.Background(), id)
	stored.Status = model.StatusSubmitted
	approver := uuid.New()
	stored.ApproverID = &approver
	if err := f.expenses.Update(context.Background(), stored); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err = f.svc.UpdateDraft(context.Background(), created.ID, owner.String(), UpdateDraftRequest{
		Vendor: "X", Date: "2026-02-15T13:30:00Z", Amount: "10.00", Currency: "EUR", Category: "Meals",
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestUpdateDraftRejectsNonOwner(t *testing.T) {
	f := newExpenseFixture()
	owner := uuid.New()

	created, err := f.svc.CreateDraft(context.Background(), owner.String(), CreateDraftRequest{
		Vendor: "X", Date: "2026-02-15T13:30:00Z", Amount: "10.00", Currency: "EUR", Category: "Meals",
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	_, err = f.svc.UpdateDraft(context.Background(), created.ID, uuid.NewString(), UpdateDraftRequest{
		Vendor: "X", Date: "2026-02-15T13:30:00Z", Amount: "10.00", Currency: "EUR", Category: "Meals",
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
