package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trackly/internal/model"
	"trackly/internal/repository"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// NotificationService exposes the per-recipient event log. Rows are only ever
// created by workflow transitions; here the owner reads them, flips the read
// flag, or deletes their own entries.
type NotificationService interface {
	ListForUser(ctx context.Context, userID string) ([]NotificationResponse, error)
	MarkRead(ctx context.Context, id string, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string, userID string) error
}

type notificationService struct {
	notifRepo repository.NotificationRepository
}

func NewNotificationService(notifRepo repository.NotificationRepository) NotificationService {
	return &notificationService{notifRepo: notifRepo}
}

func (s *notificationService) ListForUser(ctx context.Context, userID string) ([]NotificationResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	notifs, err := s.notifRepo.ListByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	result := make([]NotificationResponse, 0, len(notifs))
	for _, n := range notifs {
		result = append(result, toNotificationResponse(n))
	}
	return result, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string, userID string) error {
	notifID, uid, err := parseIDPair(id, userID)
	if err != nil {
		return err
	}
	affected, err := s.notifRepo.MarkRead(ctx, notifID, uid)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if err := s.notifRepo.MarkAllRead(ctx, uid); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (s *notificationService) Delete(ctx context.Context, id string, userID string) error {
	notifID, uid, err := parseIDPair(id, userID)
	if err != nil {
		return err
	}
	affected, err := s.notifRepo.Delete(ctx, notifID, uid)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID.String(),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}
