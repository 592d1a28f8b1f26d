package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/otpbay/otpbay/internal/models"
	"github.com/otpbay/otpbay/internal/service"
	"github.com/otpbay/otpbay/internal/utils"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
)

type CommandHandlers struct {
	ledger    *service.LedgerService
	inventory *service.InventoryService
	referral  *service.ReferralService
	provider  service.ProviderClient
	cache     *service.CacheService
	botSvc    service.BotService
	logger    *logrus.Logger
	adminID   int64
}

func NewCommandHandlers(
	ledger *service.LedgerService,
	inventory *service.InventoryService,
	referral *service.ReferralService,
	provider service.ProviderClient,
	cache *service.CacheService,
	botSvc service.BotService,
	adminID int64,
	logger *logrus.Logger,
) *CommandHandlers {
	return &CommandHandlers{
		ledger:    ledger,
		inventory: inventory,
		referral:  referral,
		provider:  provider,
		cache:     cache,
		botSvc:    botSvc,
		logger:    logger,
		adminID:   adminID,
	}
}

// HandleStart registers the account, captures the referral deep link on
// first contact and shows the main menu.
func (h *CommandHandlers) HandleStart(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	userID := strconv.FormatInt(update.Message.From.ID, 10)

	if _, err := h.ledger.GetOrCreate(ctx, userID); err != nil {
		h.logger.Errorf("Failed to create account for user %s: %v", userID, err)
		return
	}

	args := strings.Fields(update.Message.Text)
	if len(args) > 1 {
		if err := h.referral.HandleStart(ctx, userID, args[1]); err != nil {
			h.logger.Warnf("Failed to assign referrer for user %s: %v", userID, err)
		}
	}

	if err := h.botSvc.SendMessage(ctx, chatID, utils.WelcomeText(), utils.MainMenuKeyboard()); err != nil {
		h.logger.Errorf("Failed to send main menu: %v", err)
	}
}

// HandleGrant is the admin point grant: /grant <user_id> <points>.
func (h *CommandHandlers) HandleGrant(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	if !h.fromAdmin(update) {
		return
	}

	chatID := update.Message.Chat.ID
	args := strings.Fields(update.Message.Text)
	if len(args) != 3 {
		h.reply(ctx, chatID, "Usage: /grant <user_id> <points>")
		return
	}

	amount, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		h.reply(ctx, chatID, "❌ Enter a valid number")
		return
	}

	if err := h.ledger.CreditPoints(ctx, args[1], amount); err != nil {
		h.reply(ctx, chatID, fmt.Sprintf("❌ Grant failed: %v", err))
		return
	}

	h.reply(ctx, chatID, fmt.Sprintf("✅ Granted %d points to %s", amount, args[1]))
}

// HandleAddNumber adds or updates a catalog entry:
// /addnumber <item_id> <country> <price> [number].
func (h *CommandHandlers) HandleAddNumber(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	if !h.fromAdmin(update) {
		return
	}

	chatID := update.Message.Chat.ID
	args := strings.Fields(update.Message.Text)
	if len(args) < 4 {
		h.reply(ctx, chatID, "Usage: /addnumber <item_id> <country> <price> [number]")
		return
	}

	price, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil || price <= 0 {
		h.reply(ctx, chatID, "❌ Enter a valid price")
		return
	}

	item := &models.NumberItem{
		ItemID:  args[1],
		Country: strings.ToUpper(args[2]),
		Service: "other",
		Price:   price,
	}
	if len(args) > 4 {
		item.Number = args[4]
	}

	if err := h.inventory.AddOrUpdate(ctx, item); err != nil {
		h.reply(ctx, chatID, fmt.Sprintf("❌ Add failed: %v", err))
		return
	}

	h.reply(ctx, chatID, fmt.Sprintf("✅ Item %s added (%s, %d pts)", item.ItemID, item.Country, price))
}

// HandleDelNumber removes a catalog entry: /delnumber <item_id>.
func (h *CommandHandlers) HandleDelNumber(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	if !h.fromAdmin(update) {
		return
	}

	chatID := update.Message.Chat.ID
	args := strings.Fields(update.Message.Text)
	if len(args) != 2 {
		h.reply(ctx, chatID, "Usage: /delnumber <item_id>")
		return
	}

	if err := h.inventory.Remove(ctx, args[1]); err != nil {
		h.reply(ctx, chatID, fmt.Sprintf("❌ Remove failed: %v", err))
		return
	}

	h.reply(ctx, chatID, fmt.Sprintf("✅ Item %s removed", args[1]))
}

// HandleStock lists the catalog for the admin.
func (h *CommandHandlers) HandleStock(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	if !h.fromAdmin(update) {
		return
	}

	chatID := update.Message.Chat.ID
	items, err := h.inventory.List(ctx)
	if err != nil {
		h.reply(ctx, chatID, fmt.Sprintf("❌ List failed: %v", err))
		return
	}

	if len(items) == 0 {
		h.reply(ctx, chatID, "Catalog is empty")
		return
	}

	var sb strings.Builder
	sb.WriteString("📦 *Catalog*\n\n")
	for _, item := range items {
		kind := "live"
		if item.Provisioned() {
			kind = "static"
		}
		sb.WriteString(fmt.Sprintf("%s %s – %d pts (%s)\n", item.ItemID, item.Country, item.Price, kind))
	}

	h.reply(ctx, chatID, sb.String())
}

// HandleBalance shows the provisioning account balance: /balance.
func (h *CommandHandlers) HandleBalance(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
	if !h.fromAdmin(update) {
		return
	}

	chatID := update.Message.Chat.ID

	if h.cache != nil {
		if balance, currency, err := h.cache.GetProviderBalance(ctx); err == nil {
			h.reply(ctx, chatID, fmt.Sprintf("💳 Provider balance: %.2f %s (cached)", balance, currency))
			return
		}
	}

	balance, currency, err := h.provider.GetBalance(ctx)
	if err != nil {
		h.reply(ctx, chatID, fmt.Sprintf("❌ Balance check failed: %v", err))
		return
	}

	if h.cache != nil {
		if err := h.cache.SetProviderBalance(ctx, balance, currency, time.Minute); err != nil {
			h.logger.Warnf("Failed to cache provider balance: %v", err)
		}
	}

	h.reply(ctx, chatID, fmt.Sprintf("💳 Provider balance: %.2f %s", balance, currency))
}

func (h *CommandHandlers) fromAdmin(update *botmodels.Update) bool {
	return update.Message != nil && update.Message.From != nil && update.Message.From.ID == h.adminID
}

func (h *CommandHandlers) reply(ctx context.Context, chatID int64, text string) {
	if err := h.botSvc.SendMessage(ctx, chatID, text, nil); err != nil {
		h.logger.Errorf("Failed to send reply: %v", err)
	}
}
