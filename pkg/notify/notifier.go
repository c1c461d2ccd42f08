// Package notify delivers out-of-band messages to landlords. The WhatsApp
// transport lives behind the webhook server; this interface covers the
// proactive direction (new-issue alerts, approval requests).
package notify

import (
	"context"
	"fmt"

	"propline/pkg/logx"
)

// Notifier sends a message to a landlord's registered phone.
type Notifier interface {
	NotifyLandlord(ctx context.Context, landlordID, phone, message string) error
}

// LogNotifier writes notifications to the log instead of a transport. Used
// in development and as the default until an outbound transport is wired.
type LogNotifier struct {
	logger *logx.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logx.NewLogger("notify")}
}

// NotifyLandlord implements Notifier.
func (n *LogNotifier) NotifyLandlord(_ context.Context, landlordID, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("landlord %s has no registered phone", landlordID)
	}
	n.logger.Info("📨 Notification to landlord %s (%s): %s", landlordID, phone, message)
	return nil
}
