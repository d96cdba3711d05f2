package notifications

import "github.com/azure/controversy-analyzer/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendReport(report *models.Report) error
}
