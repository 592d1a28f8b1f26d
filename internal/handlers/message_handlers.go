package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otpbay/otpbay/internal/models"
	"github.com/otpbay/otpbay/internal/service"
	"github.com/otpbay/otpbay/internal/utils"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
)

// MessageHandlers routes free-form messages by the user's current deposit
// phase: plain text is an amount while AwaitingAmount, a photo is payment
// proof while AwaitingProof. Anything else is ignored.
type MessageHandlers struct {
	deposit       *service.DepositService
	botSvc        service.BotService
	logger        *logrus.Logger
	paymentHandle string
	minDeposit    int64
}

func NewMessageHandlers(
	deposit *service.DepositService,
	botSvc service.BotService,
	paymentHandle string,
	minDeposit int64,
	logger *logrus.Logger,
) *MessageHandlers {
	return &MessageHandlers{
		deposit:       deposit,
		botSvc:        botSvc,
		logger:        logger,
		paymentHandle: paymentHandle,
		minDeposit:    minDeposit,
	}
}

func (h *MessageHandlers) HandleMessage(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID

	phase, ok := h.deposit.Phase(userID)
	if !ok {
		return
	}

	switch {
	case phase == models.ClaimStatusAwaitingAmount && msg.Text != "" && !strings.HasPrefix(msg.Text, "/"):
		h.handleAmount(ctx, chatID, userID, msg.Text)
	case phase == models.ClaimStatusAwaitingProof && len(msg.Photo) > 0:
		// Largest photo size is last.
		h.handleProof(ctx, chatID, userID, msg.Photo[len(msg.Photo)-1].FileID)
	}
}

func (h *MessageHandlers) handleAmount(ctx context.Context, chatID int64, userID, text string) {
	amount, err := h.deposit.SubmitAmount(ctx, userID, text)
	if err != nil {
		switch err {
		case models.ErrInvalidAmount:
			h.reply(ctx, chatID, "❌ Enter a valid number")
		case models.ErrBelowMinimum:
			h.reply(ctx, chatID, fmt.Sprintf("❌ Minimum deposit is ₹%d", h.minDeposit))
		case models.ErrClaimAlreadyPending:
			h.reply(ctx, chatID, "⏳ Your previous deposit is still pending")
		default:
			h.logger.Errorf("Failed to submit amount for user %s: %v", userID, err)
			h.reply(ctx, chatID, "Something went wrong, try again")
		}
		return
	}

	h.reply(ctx, chatID, utils.DepositProofText(amount, h.paymentHandle))
}

func (h *MessageHandlers) handleProof(ctx context.Context, chatID int64, userID, fileID string) {
	if err := h.deposit.SubmitProof(ctx, userID, fileID); err != nil {
		h.logger.Errorf("Failed to submit proof for user %s: %v", userID, err)
		h.reply(ctx, chatID, "❌ Could not forward your proof, try again")
		return
	}

	h.reply(ctx, chatID, "⏳ Waiting for admin approval")
}

func (h *MessageHandlers) reply(ctx context.Context, chatID int64, text string) {
	if err := h.botSvc.SendMessage(ctx, chatID, text, nil); err != nil {
		h.logger.Errorf("Failed to send reply: %v", err)
	}
}
