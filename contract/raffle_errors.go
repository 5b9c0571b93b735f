package contract

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a raffle error kind. The code is part of every error string
// returned to clients, so it must never change once deployed.
type ErrorCode string

const (
	CodeInvalidParameter         ErrorCode = "InvalidParameter"
	CodeDuplicateRaffle          ErrorCode = "DuplicateRaffle"
	CodeInsufficientAssetBalance ErrorCode = "InsufficientAssetBalance"
	CodeRaffleNotFound           ErrorCode = "RaffleNotFound"
	CodeRaffleNotActive          ErrorCode = "RaffleNotActive"
	CodeMaxEntriesReached        ErrorCode = "MaxEntriesReached"
	CodeDuplicateEntry           ErrorCode = "DuplicateEntry"
	CodePaymentFailed            ErrorCode = "PaymentFailed"
	CodeUnauthorized             ErrorCode = "Unauthorized"
	CodeNoEntries                ErrorCode = "NoEntries"
	CodeTransferFailed           ErrorCode = "TransferFailed"
)

// RaffleError is a classified failure of a raffle transaction.
type RaffleError struct {
	Code    ErrorCode
	Message string
}

func (e *RaffleError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any RaffleError carrying the same code, so callers can compare
// against the Err* sentinels regardless of the message.
func (e *RaffleError) Is(target error) bool {
	var re *RaffleError
	if !errors.As(target, &re) {
		return false
	}
	return re.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidParameter         = &RaffleError{Code: CodeInvalidParameter}
	ErrDuplicateRaffle          = &RaffleError{Code: CodeDuplicateRaffle}
	ErrInsufficientAssetBalance = &RaffleError{Code: CodeInsufficientAssetBalance}
	ErrRaffleNotFound           = &RaffleError{Code: CodeRaffleNotFound}
	ErrRaffleNotActive          = &RaffleError{Code: CodeRaffleNotActive}
	ErrMaxEntriesReached        = &RaffleError{Code: CodeMaxEntriesReached}
	ErrDuplicateEntry           = &RaffleError{Code: CodeDuplicateEntry}
	ErrPaymentFailed            = &RaffleError{Code: CodePaymentFailed}
	ErrUnauthorized             = &RaffleError{Code: CodeUnauthorized}
	ErrNoEntries                = &RaffleError{Code: CodeNoEntries}
	ErrTransferFailed           = &RaffleError{Code: CodeTransferFailed}
)

func raffleErrorf(code ErrorCode, format string, args ...interface{}) error {
	return &RaffleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code from err, or "" if err is not a RaffleError.
func CodeOf(err error) ErrorCode {
	var re *RaffleError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
