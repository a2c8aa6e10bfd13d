package domain

import "errors"

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Error is a domain failure with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidID      = newError(KindValidation, "invalid_id", "invalid id")
	ErrInvalidAmount  = newError(KindValidation, "invalid_amount", "amount must be positive with at most two decimal places")
	ErrInvalidCeiling = newError(KindValidation, "invalid_ceiling", "max bid must not be lower than the bid amount")
	ErrInvalidAuction = newError(KindValidation, "invalid_auction", "invalid auction parameters")
	ErrTitleRequired  = newError(KindValidation, "title_required", "title required")
	ErrInvalidLimit   = newError(KindValidation, "invalid_limit", "invalid limit")

	ErrUnauthorized = newError(KindAuth, "unauthorized", "agent authentication required")
	ErrForbidden    = newError(KindForbidden, "forbidden", "forbidden")

	ErrAuctionNotFound = newError(KindNotFound, "auction_not_found", "auction not found")
	ErrWalletNotFound  = newError(KindNotFound, "wallet_not_found", "wallet not found")
	ErrAgentNotFound   = newError(KindNotFound, "agent_not_found", "agent not found")

	ErrAuctionNotActive    = newError(KindConflict, "auction_not_active", "auction is not active")
	ErrBidTooLow           = newError(KindConflict, "bid_too_low", "bid must exceed the current price by the minimum increment")
	ErrInsufficientBalance = newError(KindConflict, "insufficient_balance", "insufficient balance")
	ErrSelfBid             = newError(KindConflict, "self_bid", "sellers cannot bid on their own auction")
	ErrInsufficientFunds   = newError(KindConflict, "insufficient_funds", "insufficient funds")
	ErrWalletFrozen        = newError(KindConflict, "wallet_frozen", "wallet is frozen")
	ErrBuyNowUnavailable   = newError(KindConflict, "buy_now_unavailable", "buy now is not available for this auction")

	ErrRateLimited = newError(KindRateLimited, "rate_limited", "too many requests")

	ErrBusy             = newError(KindTransient, "busy", "resource busy, retry later")
	ErrSettlementFailed = newError(KindTransient, "settlement_failed", "settlement failed, retry")
	ErrConcurrentUpdate = newError(KindTransient, "concurrent_update", "concurrent update detected")
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or "internal_error".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal_error"
}

// IsRejection reports whether err is a business-rule rejection.
func IsRejection(err error) bool {
	return KindOf(err) == KindConflict
}
