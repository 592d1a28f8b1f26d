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

type CallbackHandlers struct {
	ledger    *service.LedgerService
	inventory *service.InventoryService
	purchase  *service.PurchaseService
	deposit   *service.DepositService
	referral  *service.ReferralService
	botSvc    service.BotService
	logger    *logrus.Logger

	botUsername string
	minDeposit  int64
	adminID     int64
}

func NewCallbackHandlers(
	ledger *service.LedgerService,
	inventory *service.InventoryService,
	purchase *service.PurchaseService,
	deposit *service.DepositService,
	referral *service.ReferralService,
	botSvc service.BotService,
	botUsername string,
	minDeposit int64,
	adminID int64,
	logger *logrus.Logger,
) *CallbackHandlers {
	return &CallbackHandlers{
		ledger:      ledger,
		inventory:   inventory,
		purchase:    purchase,
		deposit:     deposit,
		referral:    referral,
		botSvc:      botSvc,
		logger:      logger,
		botUsername: botUsername,
		minDeposit:  minDeposit,
		adminID:     adminID,
	}
}

// HandleCallback routes every inline button press.
func (h *CallbackHandlers) HandleCallback(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	parts := strings.Split(query.Data, ":")
	action := parts[0]

	switch action {
	case "profile":
		h.answer(ctx, b, query, "")
		h.handleProfile(ctx, query)
	case "buy":
		h.answer(ctx, b, query, "")
		h.handleBuyMenu(ctx, query)
	case "sel":
		if len(parts) < 2 {
			return
		}
		h.handleSelect(ctx, b, query, parts[1])
	case "buyok":
		h.handleBuy(ctx, b, query)
	case "otp":
		h.answer(ctx, b, query, "")
		h.handleOtp(ctx, query)
	case "deposit":
		h.handleDeposit(ctx, b, query)
	case "refer":
		h.answer(ctx, b, query, "")
		h.handleRefer(ctx, query)
	case "approve", "reject":
		if len(parts) < 2 {
			return
		}
		h.answer(ctx, b, query, "")
		h.handleAdminDecision(ctx, query, parts[1], action == "approve")
	case "back":
		h.answer(ctx, b, query, "")
		h.handleBack(ctx, query)
	}
}

func (h *CallbackHandlers) handleProfile(ctx context.Context, query *botmodels.CallbackQuery) {
	userID := strconv.FormatInt(query.From.ID, 10)

	account, err := h.ledger.GetOrCreate(ctx, userID)
	if err != nil {
		h.logger.Errorf("Failed to load profile for user %s: %v", userID, err)
		return
	}

	h.edit(ctx, query, utils.ProfileText(account), utils.BackKeyboard())
}

func (h *CallbackHandlers) handleBuyMenu(ctx context.Context, query *botmodels.CallbackQuery) {
	items, err := h.inventory.List(ctx)
	if err != nil {
		h.logger.Errorf("Failed to list catalog: %v", err)
		h.edit(ctx, query, "❌ Catalog unavailable, try again later", utils.BackKeyboard())
		return
	}

	if len(items) == 0 {
		h.edit(ctx, query, "😔 No numbers in stock right now", utils.BackKeyboard())
		return
	}

	h.edit(ctx, query, "📲 *Select a number*", utils.CatalogKeyboard(items))
}

func (h *CallbackHandlers) handleSelect(ctx context.Context, b *bot.Bot, query *botmodels.CallbackQuery, itemID string) {
	userID := strconv.FormatInt(query.From.ID, 10)

	if _, err := h.purchase.Select(ctx, userID, itemID); err != nil {
		h.answer(ctx, b, query, h.userError(err))
		return
	}

	item, err := h.purchase.Confirm(ctx, userID)
	if err != nil {
		h.answer(ctx, b, query, h.userError(err))
		return
	}

	h.answer(ctx, b, query, "")
	text := fmt.Sprintf("Confirm purchase?\n\n%s %s – *%d points*",
		utils.CountryFlag(item.Country), item.Country, item.Price)
	h.edit(ctx, query, text, utils.ConfirmKeyboard())
}

func (h *CallbackHandlers) handleBuy(ctx context.Context, b *bot.Bot, query *botmodels.CallbackQuery) {
	userID := strconv.FormatInt(query.From.ID, 10)

	order, err := h.purchase.Buy(ctx, userID)
	if err != nil {
		h.answer(ctx, b, query, h.userError(err))
		return
	}

	h.answer(ctx, b, query, "")
	text := fmt.Sprintf("📱 *Number Purchased*\n\n`%s`", order.Number)
	h.edit(ctx, query, text, utils.PurchasedKeyboard())
}

// handleOtp runs the bounded poll on its own goroutine so one user's wait
// never blocks another user's session.
func (h *CallbackHandlers) handleOtp(ctx context.Context, query *botmodels.CallbackQuery) {
	userID := strconv.FormatInt(query.From.ID, 10)

	if _, ok := h.purchase.ActiveOrder(userID); !ok {
		h.edit(ctx, query, "❌ No active order", utils.BackKeyboard())
		return
	}

	h.edit(ctx, query, "⏳ Waiting for OTP...", nil)

	go func() {
		pollCtx := context.WithoutCancel(ctx)
		code, err := h.purchase.AwaitCode(pollCtx, userID)

		chatID := h.chatID(query)
		if chatID == 0 {
			return
		}

		if err != nil {
			text := "⌛ OTP not received in time. The number stays yours; try a new purchase."
			if err == models.ErrOrderInProgress {
				text = "⏳ Already waiting for OTP"
			}
			if sendErr := h.botSvc.SendMessage(pollCtx, chatID, text, utils.BackKeyboard()); sendErr != nil {
				h.logger.Errorf("Failed to send OTP result: %v", sendErr)
			}
			return
		}

		text := fmt.Sprintf("📩 *Your OTP*\n\n`%s`", code)
		if sendErr := h.botSvc.SendMessage(pollCtx, chatID, text, utils.BackKeyboard()); sendErr != nil {
			h.logger.Errorf("Failed to send OTP: %v", sendErr)
		}
	}()
}

func (h *CallbackHandlers) handleDeposit(ctx context.Context, b *bot.Bot, query *botmodels.CallbackQuery) {
	userID := strconv.FormatInt(query.From.ID, 10)

	if err := h.deposit.Request(ctx, userID); err != nil {
		h.answer(ctx, b, query, h.userError(err))
		return
	}

	h.answer(ctx, b, query, "")
	h.edit(ctx, query, utils.DepositPromptText(h.minDeposit), utils.BackKeyboard())
}

func (h *CallbackHandlers) handleRefer(ctx context.Context, query *botmodels.CallbackQuery) {
	userID := strconv.FormatInt(query.From.ID, 10)
	link := h.referral.Link(h.botUsername, userID)
	h.edit(ctx, query, utils.ReferText(link), utils.BackKeyboard())
}

func (h *CallbackHandlers) handleAdminDecision(ctx context.Context, query *botmodels.CallbackQuery, targetUserID string, approved bool) {
	issuerID := strconv.FormatInt(query.From.ID, 10)

	amount, err := h.deposit.Decide(ctx, issuerID, targetUserID, approved)
	if err != nil {
		if err == models.ErrUnauthorized {
			return
		}
		h.logger.Errorf("Deposit decision for user %s failed: %v", targetUserID, err)
		return
	}

	caption := fmt.Sprintf("Rejected ❌ (₹%d)", amount)
	if approved {
		caption = fmt.Sprintf("Approved ✅ (₹%d)", amount)
	}

	chatID := h.chatID(query)
	messageID := h.messageID(query)
	if chatID == 0 {
		return
	}

	if _, err := h.botSvc.GetBot().EditMessageCaption(ctx, &bot.EditMessageCaptionParams{
		ChatID:    chatID,
		MessageID: messageID,
		Caption:   caption,
	}); err != nil {
		h.logger.Warnf("Failed to edit review caption: %v", err)
	}
}

func (h *CallbackHandlers) handleBack(ctx context.Context, query *botmodels.CallbackQuery) {
	userID := strconv.FormatInt(query.From.ID, 10)

	if err := h.purchase.Abort(userID); err != nil {
		h.logger.Debugf("Order for user %s not aborted: %v", userID, err)
	}
	if err := h.deposit.Abort(ctx, userID); err != nil {
		h.logger.Debugf("Claim for user %s not aborted: %v", userID, err)
	}

	h.edit(ctx, query, utils.WelcomeText(), utils.MainMenuKeyboard())
}

func (h *CallbackHandlers) userError(err error) string {
	switch err {
	case models.ErrInsufficientFunds:
		return "Not enough points"
	case models.ErrItemUnavailable:
		return "Number no longer available"
	case models.ErrOrderInProgress:
		return "Finish your current order first"
	case models.ErrClaimInProgress:
		return "Your previous deposit is still being processed"
	case models.ErrProviderUnavailable:
		return "Provider unavailable, points refunded"
	case models.ErrNoActiveOrder:
		return "Nothing selected"
	default:
		return "Something went wrong, try again"
	}
}

func (h *CallbackHandlers) answer(ctx context.Context, b *bot.Bot, query *botmodels.CallbackQuery, alert string) {
	params := &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}
	if alert != "" {
		params.Text = alert
		params.ShowAlert = true
	}

	if _, err := b.AnswerCallbackQuery(ctx, params); err != nil {
		h.logger.Debugf("Failed to answer callback: %v", err)
	}
}

func (h *CallbackHandlers) edit(ctx context.Context, query *botmodels.CallbackQuery, text string, markup botmodels.ReplyMarkup) {
	chatID := h.chatID(query)
	if chatID == 0 {
		return
	}

	if err := h.botSvc.EditMessage(ctx, chatID, h.messageID(query), text, markup); err != nil {
		h.logger.Warnf("Failed to edit message: %v", err)
	}
}

func (h *CallbackHandlers) chatID(query *botmodels.CallbackQuery) int64 {
	if query.Message.Message != nil {
		return query.Message.Message.Chat.ID
	}
	return 0
}

func (h *CallbackHandlers) messageID(query *botmodels.CallbackQuery) int {
	if query.Message.Message != nil {
		return query.Message.Message.ID
	}
	return 0
}
