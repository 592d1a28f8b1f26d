package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
)

// BotService wraps the Telegram transport. It is the only component that
// talks to the messaging layer; workflows reach it through the
// DepositNotifier interface.
type BotService interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, chatID int64, text string, markup botmodels.ReplyMarkup) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup botmodels.ReplyMarkup) error
	GetBot() *bot.Bot

	DepositNotifier
}

type botService struct {
	bot     *bot.Bot
	adminID int64
}

func NewBotService(token string, adminID int64, opts ...bot.Option) (BotService, error) {
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &botService{
		bot:     b,
		adminID: adminID,
	}, nil
}

func (s *botService) Start(ctx context.Context) {
	s.bot.Start(ctx)
}

func (s *botService) GetBot() *bot.Bot {
	return s.bot
}

func (s *botService) SendMessage(ctx context.Context, chatID int64, text string, markup botmodels.ReplyMarkup) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   botmodels.ParseModeMarkdown,
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (s *botService) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup botmodels.ReplyMarkup) error {
	_, err := s.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   botmodels.ParseModeMarkdown,
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

// ForwardDepositReview re-sends the payment screenshot to the admin with
// approve/reject buttons carrying the claimant's id.
func (s *botService) ForwardDepositReview(ctx context.Context, claim *models.DepositClaim) error {
	markup := &botmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botmodels.InlineKeyboardButton{
			{
				{Text: "✅ Approve", CallbackData: "approve:" + claim.UserID},
				{Text: "❌ Reject", CallbackData: "reject:" + claim.UserID},
			},
		},
	}

	_, err := s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:      s.adminID,
		Photo:       &botmodels.InputFileString{Data: claim.ProofFileID},
		Caption:     fmt.Sprintf("Deposit request\nUser: %s\nAmount: ₹%d", claim.UserID, claim.Amount),
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("failed to forward deposit review: %w", err)
	}

	return nil
}

func (s *botService) NotifyUser(ctx context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	return s.SendMessage(ctx, chatID, text, nil)
}
