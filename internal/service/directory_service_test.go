package service

import (
	"context"
	"errors"
	"testing"

	"trackly/internal/model"

	"github.com/google/uuid"
)

func addUser(t *testing.T, repo *fakeUserRepo, name string, managerID *uuid.UUID) *model.User {
	t.Helper()
	u := &model.User{
		Name:      name,
		Email:     name + "@example.com",
		Password:  "hashed",
		Role:      model.RoleUser,
		ManagerID: managerID,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func TestApprovalChainWalksToRoot(t *testing.T) {
	repo := newFakeUserRepo()
	carol := addUser(t, repo, "carol", nil)
	bob := addUser(t, repo, "bob", &carol.ID)
	alice := addUser(t, repo, "alice", &bob.ID)

	dir := NewDirectoryService(repo)
	chain, err := dir.ApprovalChain(context.Background(), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(chain))
	}
	if chain[0].ID != bob.ID || chain[1].ID != carol.ID {
		t.Errorf("chain order wrong: got [%s, %s]", chain[0].Name, chain[1].Name)
	}
}

func TestApprovalChainEmptyForRoot(t *testing.T) {
	repo := newFakeUserRepo()
	carol := addUser(t, repo, "carol", nil)

	dir := NewDirectoryService(repo)
	chain, err := dir.ApprovalChain(context.Background(), carol)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("expected empty chain, got %d entries", len(chain))
	}
}

func TestApprovalChainDetectsCycle(t *testing.T) {
	repo := newFakeUserRepo()
	a := addUser(t, repo, "a", nil)
	b := addUser(t, repo, "b", &a.ID)
	a.ManagerID = &b.ID
	if err := repo.Update(context.Background(), a); err != nil {
		t.Fatalf("update: %v", err)
	}

	dir := NewDirectoryService(repo)
	_, err := dir.ApprovalChain(context.Background(), a)
	if !errors.Is(err, ErrCyclicHierarchy) {
		t.Fatalf("expected ErrCyclicHierarchy, got %v", err)
	}
}

func TestApprovalChainSelfManagedCycle(t *testing.T) {
	repo := newFakeUserRepo()
	a := addUser(t, repo, "a", nil)
	a.ManagerID = &a.ID
	if err := repo.Update(context.Background(), a); err != nil {
		t.Fatalf("update: %v", err)
	}

	dir := NewDirectoryService(repo)
	_, err := dir.ApprovalChain(context.Background(), a)
	if !errors.Is(err, ErrCyclicHierarchy) {
		t.Fatalf("expected ErrCyclicHierarchy, got %v", err)
	}
}

func TestImmediateManagerDanglingReference(t *testing.T) {
	repo := newFakeUserRepo()
	ghost := uuid.New()
	alice := addUser(t, repo, "alice", &ghost)

	dir := NewDirectoryService(repo)
	mgr, err := dir.ImmediateManager(context.Background(), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr != nil {
		t.Errorf("expected nil manager for dangling reference, got %v", mgr.ID)
	}
}
