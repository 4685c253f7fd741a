package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/urbankart/storefront/internal/models"
	"github.com/urbankart/storefront/internal/utils"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, errorMessage string) error
}

type notificationRepository struct {
	DB *sql.DB
}

func NewNotificationRepo(db *sql.DB) NotificationRepository {
	return &notificationRepository{DB: db}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO notifications (id, type, recipient, subject, content, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		notification.ID, notification.Type, notification.Recipient,
		notification.Subject, notification.Content, notification.Status, notification.Error,
	).Scan(&notification.CreatedAt, &notification.UpdatedAt)
}

func (r *notificationRepository) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, errorMessage string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var sentAt any
	if status == models.NotificationStatusSent {
		sentAt = time.Now()
	}

	query := `
		UPDATE notifications
		SET status = $1, error = $2, sent_at = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.DB.ExecContext(dbCtx, query, status, errorMessage, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
