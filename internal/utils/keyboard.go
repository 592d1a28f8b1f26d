package utils

import (
	"fmt"

	"github.com/otpbay/otpbay/internal/models"

	botmodels "github.com/go-telegram/bot/models"
)

func MainMenuKeyboard() *botmodels.InlineKeyboardMarkup {
	return &botmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botmodels.InlineKeyboardButton{
			{
				{Text: "👤 Profile", CallbackData: "profile"},
				{Text: "📲 Buy Numbers", CallbackData: "buy"},
			},
			{
				{Text: "💰 Deposit", CallbackData: "deposit"},
				{Text: "🎁 Refer & Earn", CallbackData: "refer"},
			},
		},
	}
}

func CatalogKeyboard(items []*models.NumberItem) *botmodels.InlineKeyboardMarkup {
	var rows [][]botmodels.InlineKeyboardButton
	var row []botmodels.InlineKeyboardButton

	for _, item := range items {
		row = append(row, botmodels.InlineKeyboardButton{
			Text:         fmt.Sprintf("%s %s – %d pts", CountryFlag(item.Country), item.Country, item.Price),
			CallbackData: "sel:" + item.ItemID,
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []botmodels.InlineKeyboardButton{
		{Text: "⬅️ Back", CallbackData: "back"},
	})

	return &botmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func ConfirmKeyboard() *botmodels.InlineKeyboardMarkup {
	return &botmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botmodels.InlineKeyboardButton{
			{
				{Text: "✅ Buy", CallbackData: "buyok"},
				{Text: "⬅️ Back", CallbackData: "back"},
			},
		},
	}
}

func PurchasedKeyboard() *botmodels.InlineKeyboardMarkup {
	return &botmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botmodels.InlineKeyboardButton{
			{
				{Text: "📩 Get OTP", CallbackData: "otp"},
				{Text: "⬅️ Back", CallbackData: "back"},
			},
		},
	}
}

func BackKeyboard() *botmodels.InlineKeyboardMarkup {
	return &botmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botmodels.InlineKeyboardButton{
			{
				{Text: "⬅️ Back", CallbackData: "back"},
			},
		},
	}
}
