package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/models"
	repository "github.com/urbankart/storefront/internal/repositories"
	"github.com/urbankart/storefront/pkg/sendgrid"
)

type NotificationService interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, recipientEmail, recipientName string) error
}

type notificationService struct {
	repo         repository.NotificationRepository
	emailService sendgrid.EmailService
}

func NewNotificationService(repo repository.NotificationRepository, emailService sendgrid.EmailService) NotificationService {
	return &notificationService{repo: repo, emailService: emailService}
}

// SendOrderConfirmation records the attempt and sends a plain-text summary.
// Callers treat this as best-effort: an error here never fails the order.
func (n *notificationService) SendOrderConfirmation(ctx context.Context, order *models.Order, recipientEmail, recipientName string) error {

	req := &models.EmailNotificationRequest{
		Subject:   fmt.Sprintf("Order confirmed: %s", order.ID),
		Content:   renderOrderSummary(order, recipientName),
		Recipient: recipientEmail,
	}

	notification := &models.Notification{
		ID:        uuid.New(),
		Type:      models.NotificationTypeEmail,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Content:   req.Content,
		Status:    models.NotificationStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := n.repo.CreateNotification(ctx, notification); err != nil {
		return errors.DatabaseError("Failed to record notification").WithError(err)
	}

	if err := n.emailService.Send(ctx, req); err != nil {
		_ = n.repo.UpdateNotificationStatus(ctx, notification.ID, models.NotificationStatusFailed, err.Error())

		return errors.ThirdPartyError("Failed to send confirmation email").WithError(err)
	}

	if err := n.repo.UpdateNotificationStatus(ctx, notification.ID, models.NotificationStatusSent, ""); err != nil {
		return errors.DatabaseError("Sent but failed to update notification status").WithError(err)
	}

	return nil
}

func renderOrderSummary(order *models.Order, recipientName string) string {

	var b strings.Builder

	fmt.Fprintf(&b, "Hi %s,\n\nYour order %s has been placed.\n\n", recipientName, order.ID)

	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x%d @ %.2f", item.Title, item.Quantity, item.UnitPrice)

		if item.Size != "" {
			fmt.Fprintf(&b, " (size %s)", item.Size)
		}

		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nTotal: %.2f\nPayment method: %s\n", order.TotalAmount, order.PaymentMethod)

	return b.String()
}
