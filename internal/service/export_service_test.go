package service

import (
	"context"
	"errors"
	"testing"

	"trackly/internal/model"
)

func TestExportApprovedExpensesAccessControl(t *testing.T) {
	users := newFakeUserRepo()
	expenses := newFakeExpenseRepo()
	owner := addUser(t, users, "alice", nil)
	other := addUser(t, users, "bob", nil)

	svc := NewExportService(expenses, users)

	// Owners may pull their own rows even without elevated roles.
	if _, err := svc.ApprovedExpenses(context.Background(), owner.ID.String(), owner.ID.String(), model.RoleUser); err != nil {
		t.Fatalf("self export: %v", err)
	}

	// A plain user cannot pull someone else's rows.
	_, err := svc.ApprovedExpenses(context.Background(), owner.ID.String(), other.ID.String(), model.RoleUser)
	if !errors.Is(err, ErrExportForbidden) {
		t.Fatalf("expected ErrExportForbidden, got %v", err)
	}

	// Finance may.
	if _, err := svc.ApprovedExpenses(context.Background(), owner.ID.String(), other.ID.String(), model.RoleFinance); err != nil {
		t.Fatalf("finance export: %v", err)
	}
}

func TestExportReturnsOnlyApprovedRows(t *testing.T) {
	users := newFakeUserRepo()
	expenses := newFakeExpenseRepo()
	owner := addUser(t, users, "alice", nil)

	f := &workflowFixture{users: users, expenses: expenses}
	f.addExpense(t, owner.ID, model.StatusApproved, "10.00")
	f.addExpense(t, owner.ID, model.StatusDraft, "20.00")
	f.addExpense(t, owner.ID, model.StatusRejected, "30.00")

	svc := NewExportService(expenses, users)
	rows, err := svc.ApprovedExpenses(context.Background(), owner.ID.String(), owner.ID.String(), model.RoleUser)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].OwnerEmail != owner.Email {
		t.Errorf("owner email = %s, want %s", rows[0].OwnerEmail, owner.Email)
	}
	if rows[0].Amount != "10.0000" {
		t.Errorf("amount = %s, want 10.0000", rows[0].Amount)
	}
}
