package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

var (
	ErrDeliveryFailed = errors.New("notification delivery failed")
	ErrInvalidPhone   = errors.New("invalid phone number")
)

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// NormalizePhone keeps digits only and adds the Brazilian country code to
// local numbers (10 or 11 digits).
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return "", ErrInvalidPhone
	}
	if !strings.HasPrefix(digits, "55") && len(digits) <= 11 {
		digits = "55" + digits
	}
	return digits, nil
}

// LogSender only logs messages. Used when no WhatsApp instance is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (l LogSender) Send(_ context.Context, phone, text string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification not sent, no transport configured", "phone", phone, "chars", len(text))
	return nil
}
