package service

import (
	"context"
	"errors"
	"testing"

	"trackly/internal/model"

	"github.com/google/uuid"
)

func TestNotificationMarkReadScopedToRecipient(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo)

	alice := uuid.New()
	bob := uuid.New()
	n := &model.Notification{UserID: alice, Type: model.NotifTypeApproval, Title: "t", Message: "m"}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another user cannot flip someone else's notification.
	if err := svc.MarkRead(context.Background(), n.ID.String(), bob.String()); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}

	if err := svc.MarkRead(context.Background(), n.ID.String(), alice.String()); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	list, err := svc.ListForUser(context.Background(), alice.String())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !list[0].Read {
		t.Errorf("expected one read notification, got %+v", list)
	}
}

func TestNotificationDeleteUnknownID(t *testing.T) {
	svc := NewNotificationService(&fakeNotificationRepo{})

	err := svc.Delete(context.Background(), uuid.NewString(), uuid.NewString())
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}
