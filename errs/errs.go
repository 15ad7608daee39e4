// Package errs implements the error taxonomy of spec.md §7. Every error
// the engine returns across a component boundary carries one of these
// Kinds, so callers can branch with errors.As without parsing strings.
package errs

import "fmt"

// Kind classifies an error by its spec.md §7 cause category.
type Kind int

const (
	// KindValidation covers invalid descriptors, fee rates, address
	// networks, not-enough-participants, duplicated/duplicate-shared
	// signer descriptors.
	KindValidation Kind = iota + 1

	// KindCrypto covers decryption/signature failures and malformed keys.
	KindCrypto

	// KindProtocolPrereq covers missing shared key / missing proposal /
	// missing tags. Never surfaced to Action API callers: the handler
	// converts it into a pending event (spec.md §7 propagation policy).
	KindProtocolPrereq

	// KindWallet covers insufficient funds, no UTXOs available, timelock
	// violations, PSBT signing/finalization failures.
	KindWallet

	// KindExternal covers relay I/O, chain I/O, persistence I/O.
	KindExternal

	// KindAuthorization covers deleting an event authored by someone else.
	KindAuthorization
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCrypto:
		return "crypto"
	case KindProtocolPrereq:
		return "protocol_prereq"
	case KindWallet:
		return "wallet"
	case KindExternal:
		return "external"
	case KindAuthorization:
		return "authorization"
	default:
		return "unknown"
	}
}

// Error is the engine's annotated error type: a Kind, a human-readable
// message, and an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, errs.Wallet("")) style sentinel comparisons are possible
// when callers only care about the category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Validation builds a KindValidation error.
func Validation(msg string) *Error { return newErr(KindValidation, msg, nil) }

// Validationf builds a KindValidation error wrapping cause.
func Validationf(msg string, cause error) *Error { return newErr(KindValidation, msg, cause) }

// Crypto builds a KindCrypto error.
func Crypto(msg string) *Error { return newErr(KindCrypto, msg, nil) }

// Cryptof builds a KindCrypto error wrapping cause.
func Cryptof(msg string, cause error) *Error { return newErr(KindCrypto, msg, cause) }

// ProtocolPrereq builds a KindProtocolPrereq error.
func ProtocolPrereq(msg string) *Error { return newErr(KindProtocolPrereq, msg, nil) }

// Wallet builds a KindWallet error.
func Wallet(msg string) *Error { return newErr(KindWallet, msg, nil) }

// Walletf builds a KindWallet error wrapping cause.
func Walletf(msg string, cause error) *Error { return newErr(KindWallet, msg, cause) }

// External builds a KindExternal error wrapping cause.
func External(msg string, cause error) *Error { return newErr(KindExternal, msg, cause) }

// Authorization builds a KindAuthorization error.
func Authorization(msg string) *Error { return newErr(KindAuthorization, msg, nil) }

// IsProtocolPrereq reports whether err is a protocol-prerequisite error.
func IsProtocolPrereq(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindProtocolPrereq
}

// IsAuthorization reports whether err is an authorization error.
func IsAuthorization(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindAuthorization
}
