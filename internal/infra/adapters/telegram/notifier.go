package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"signals-platform/internal/domain/model"
	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/logging"
)

var _ adapter.AdminNotifier = (*AdminNotifier)(nil)

const (
	cbValidate = "validate:"
	cbCancel   = "cancel:"
)

// AdminNotifier posts payment notices to every admin chat.
type AdminNotifier struct {
	bot     adapter.TelegramBotAdapter
	chatIDs []int64
	dev     bool
}

func NewAdminNotifier(bot adapter.TelegramBotAdapter, chatIDs []int64, dev bool) *AdminNotifier {
	return &AdminNotifier{bot: bot, chatIDs: chatIDs, dev: dev}
}

// NotifyPendingPayment sends the payment summary with Validate / Cancel buttons.
// It reports the joined errors of the chats it could not reach.
func (n *AdminNotifier) NotifyPendingPayment(ctx context.Context, p *model.PendingPayment, offer *model.Offer) error {
	text := n.pendingText(p, offer)
	id := strconv.FormatInt(p.ID, 10)
	rows := [][]adapter.InlineButton{{
		{Text: "✅ Validate", Data: cbValidate + id},
		{Text: "❌ Cancel", Data: cbCancel + id},
	}}
	var errs []error
	for _, chat := range n.chatIDs {
		if err := n.bot.SendButtons(ctx, chat, text, rows); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
		}
	}
	return errors.Join(errs...)
}

func (n *AdminNotifier) pendingText(p *model.PendingPayment, offer *model.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 New pending payment #%d\n", p.ID)
	name := p.OfferName
	if name == "" && offer != nil {
		name = offer.Name
	}
	fmt.Fprintf(&b, "Offer: %s\n", name)
	if offer != nil {
		fmt.Fprintf(&b, "Access: %s\n", offer.AccessLabel())
	}
	fmt.Fprintf(&b, "Amount: %s %s\n", p.Amount.String(), p.Currency)
	if p.User != nil {
		fmt.Fprintf(&b, "User: %s\n", logging.Redact(p.User.Email, n.dev))
	}
	fmt.Fprintf(&b, "Contact: %s %s", p.ContactMethod, p.ContactInfo)
	return b.String()
}

// NotifyPendingDigest sends one message listing every open payment, oldest first as received.
func (n *AdminNotifier) NotifyPendingDigest(ctx context.Context, pending []*model.PendingPayment) error {
	if len(pending) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ %d payment(s) waiting for an admin\n", len(pending))
	for i, p := range pending {
		if i == 20 {
			fmt.Fprintf(&b, "… and %d more", len(pending)-i)
			break
		}
		fmt.Fprintf(&b, "#%d %s %s %s (%s via %s)\n", p.ID, p.OfferName, p.Amount.String(), p.Currency, p.Status, p.ContactMethod)
	}
	text := strings.TrimRight(b.String(), "\n")
	var errs []error
	for _, chat := range n.chatIDs {
		if err := n.bot.SendMessage(ctx, chat, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
		}
	}
	return errors.Join(errs...)
}
