package utils

import (
	"fmt"

	"github.com/otpbay/otpbay/internal/models"
)

var countryFlags = map[string]string{
	"IN": "🇮🇳",
	"US": "🇺🇸",
	"GB": "🇬🇧",
	"RU": "🇷🇺",
	"ID": "🇮🇩",
	"PH": "🇵🇭",
	"VN": "🇻🇳",
	"MY": "🇲🇾",
	"UA": "🇺🇦",
}

func CountryFlag(country string) string {
	if flag, ok := countryFlags[country]; ok {
		return flag
	}
	return "🌐"
}

func ProfileText(account *models.Account) string {
	number := account.ActiveNumber
	if number == "" {
		number = "None"
	}
	referredBy := account.ReferredBy
	if referredBy == "" {
		referredBy = "None"
	}

	return fmt.Sprintf(
		"👤 *Your Profile*\n\n"+
			"🎁 Points: %d\n"+
			"📱 Active Number: %s\n"+
			"💳 Total Deposit: ₹%d\n"+
			"👥 Referred By: %s",
		account.Points, number, account.DepositTotal, referredBy,
	)
}

func WelcomeText() string {
	return "📲 *Virtual Number OTP Bot*\n\n" +
		"This bot provides virtual numbers for OTP verification.\n" +
		"Buy numbers, receive OTPs, deposit balance & earn via referrals."
}

func ReferText(link string) string {
	return fmt.Sprintf("🎁 *Refer & Earn*\n\n1 Referral = 1 Point\n\n%s", link)
}

func DepositPromptText(minimum int64) string {
	return fmt.Sprintf("💰 *Deposit Balance*\n\nEnter amount (minimum ₹%d)", minimum)
}

func DepositProofText(amount int64, paymentHandle string) string {
	return fmt.Sprintf("💰 Amount: ₹%d\n\nUPI ID:\n`%s`\n\nSend payment screenshot", amount, paymentHandle)
}
