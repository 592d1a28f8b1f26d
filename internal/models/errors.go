package models

import "errors"

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient points balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrBelowMinimum        = errors.New("amount below minimum deposit")
	ErrClaimAlreadyPending = errors.New("deposit claim already pending")
	ErrClaimInProgress     = errors.New("deposit claim in progress")
	ErrNoPendingDeposit    = errors.New("no pending deposit")
	ErrItemUnavailable     = errors.New("number unavailable")
	ErrOrderInProgress     = errors.New("order already in progress")
	ErrNoActiveOrder       = errors.New("no active order")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrCodeNotReady        = errors.New("code not received yet")
	ErrOtpTimeout          = errors.New("timed out waiting for OTP")
	ErrUnauthorized        = errors.New("unauthorized")
)
