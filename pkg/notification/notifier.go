package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// Directory resolves a user ID to an email address. User accounts live
// outside this module.
type Directory interface {
	// EmailFor returns ErrNoRecipient when the user has no address.
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// EmailNotifier sends subscription lifecycle emails.
type EmailNotifier struct {
	sender EmailSender
	users  Directory
	log    *slog.Logger
}

// NewEmailNotifier creates a notifier delivering through the given
// sender. Panics on nil dependencies to fail fast during initialization.
func NewEmailNotifier(sender EmailSender, users Directory, log *slog.Logger) *EmailNotifier {
	if sender == nil {
		panic("notification: EmailSender is required")
	}
	if users == nil {
		panic("notification: Directory is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &EmailNotifier{sender: sender, users: users, log: log}
}

// frenchAmount renders an amount with French digit grouping, the way
// prices are displayed to users ("10 000 XOF").
func frenchAmount(amount decimal.Decimal, currency string) string {
	p := message.NewPrinter(language.French)
	return p.Sprintf("%v %s", number.Decimal(amount.InexactFloat64()), currency)
}

// PaymentSettled confirms a settled purchase to the payer.
func (n *EmailNotifier) PaymentSettled(ctx context.Context, userID uuid.UUID, packName string, amount decimal.Decimal, currency string) error {
	subject := fmt.Sprintf("Votre abonnement %s est actif", packName)
	body := fmt.Sprintf(
		"<p>Votre paiement de <strong>%s</strong> a bien été reçu.</p><p>Le pack <strong>%s</strong> est maintenant actif sur votre compte.</p>",
		frenchAmount(amount, currency), packName)
	return n.send(ctx, userID, subject, body)
}

// SubscriptionExpired tells a user they were moved to the free tier.
func (n *EmailNotifier) SubscriptionExpired(ctx context.Context, userID uuid.UUID) error {
	subject := "Votre abonnement a expiré"
	body := "<p>Votre abonnement est arrivé à son terme. Votre compte est repassé sur le pack Découverte.</p><p>Renouvelez à tout moment pour retrouver vos avantages.</p>"
	return n.send(ctx, userID, subject, body)
}

func (n *EmailNotifier) send(ctx context.Context, userID uuid.UUID, subject, body string) error {
	to, err := n.users.EmailFor(ctx, userID)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		return err
	}
	n.log.DebugContext(ctx, "notification sent", "user_id", userID, "subject", subject)
	return nil
}

// Disabled is a no-op notifier for environments without email.
type Disabled struct{}

func (Disabled) PaymentSettled(context.Context, uuid.UUID, string, decimal.Decimal, string) error {
	return nil
}

func (Disabled) SubscriptionExpired(context.Context, uuid.UUID) error {
	return nil
}
