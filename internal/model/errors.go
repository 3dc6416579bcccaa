package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups errors by how callers should react to them.
type Kind string

const (
	KindConfig                Kind = "config"
	KindValidation            Kind = "validation"
	KindRPC                   Kind = "rpc"
	KindInconsistentPoolState Kind = "inconsistent_pool_state"
	KindPartialResult         Kind = "partial_result"
	KindUnsupportedOperation  Kind = "unsupported_operation"
	KindSuperseded            Kind = "superseded"
)

// Error is a sentinel carrying its Kind. Wrap it with fmt.Errorf("%w: ...") to add detail.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrUnknownChain         = newError(KindConfig, "unknown chain")
	ErrUnsupportedPlatform  = newError(KindConfig, "unsupported platform")
	ErrMissingInitCodeHash  = newError(KindConfig, "missing pool init code hash")
	ErrUnsupportedFeeTier   = newError(KindConfig, "unsupported fee tier")
	ErrChainMismatch        = newError(KindConfig, "rpc reader is scoped to another chain")
	ErrUnknownToken         = newError(KindConfig, "unknown token")
	ErrTickUnaligned        = newError(KindValidation, "tick not aligned to tick spacing")
	ErrTickOutOfRange       = newError(KindValidation, "tick out of range")
	ErrTickOrder            = newError(KindValidation, "tickLower must be below tickUpper")
	ErrSlippageOutOfRange   = newError(KindValidation, "slippage out of range")
	ErrDeadlineInPast       = newError(KindValidation, "deadline in past")
	ErrAmountsZero          = newError(KindValidation, "amounts are zero")
	ErrSameToken            = newError(KindValidation, "pair uses the same token twice")
	ErrTokensUnordered      = newError(KindValidation, "token0 must sort before token1")
	ErrPercentageOutOfRange = newError(KindValidation, "percentage out of range")
	ErrNotBurnable          = newError(KindValidation, "position still holds liquidity or owed tokens")
	ErrZeroRecipient        = newError(KindValidation, "recipient is the zero address")
	ErrInvalidPrice         = newError(KindValidation, "invalid price")
	ErrSqrtPriceOutOfRange  = newError(KindValidation, "sqrt price out of range")
	ErrAmountOverflow       = newError(KindValidation, "amount does not fit in 256 bits")
	ErrPositionBurned       = newError(KindValidation, "position is burned")
	ErrRPC                  = newError(KindRPC, "rpc failure")
	ErrMalformedReturn      = newError(KindRPC, "malformed return data")
	ErrReverted             = newError(KindRPC, "execution reverted")
	ErrNoReachableEndpoint  = newError(KindRPC, "no reachable rpc endpoint")
	ErrInconsistentPool     = newError(KindInconsistentPoolState, "inconsistent pool state")
	ErrPoolNotFound         = newError(KindInconsistentPoolState, "pool does not exist")
	ErrPartialResult        = newError(KindPartialResult, "partial result")
	ErrUnsupportedOperation = newError(KindUnsupportedOperation, "unsupported operation")
	ErrSuperseded           = newError(KindSuperseded, "refresh superseded by a newer epoch")
)

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether a different endpoint may succeed where this one failed.
// Reverts and malformed returns are deterministic and never retried.
func Retryable(err error) bool {
	if errors.Is(err, ErrReverted) || errors.Is(err, ErrMalformedReturn) {
		return false
	}
	return KindOf(err) == KindRPC
}

// ItemFailure marks one item of a batch that could not be read or derived.
type ItemFailure struct {
	Ref string
	Err error
}

// PartialError is returned alongside the successful part of a batch.
type PartialError struct {
	Failures []ItemFailure
}

func (e *PartialError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Ref, f.Err))
	}
	return fmt.Sprintf("%s: %d failed (%s)", ErrPartialResult.Msg, len(e.Failures), strings.Join(parts, "; "))
}

func (e *PartialError) Unwrap() error { return ErrPartialResult }
