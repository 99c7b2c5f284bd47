package oracle

import "errors"

// Errors raised by the dispatch and validation core. Configuration errors
// are fixable by changing the mapping; protocol errors are caller bugs.
// Neither is ever retried here.
var (
	// ErrUnknownKind is returned when a wire discriminant does not map to
	// any shipped kind.
	ErrUnknownKind = errors.New("unknown oracle kind")

	// ErrUnexpectedAccount is returned by the top-level drain check when the
	// auxiliary account stream still holds accounts the call never declared
	// using.
	ErrUnexpectedAccount = errors.New("unexpected extra account in stream")

	// ErrAccountRequired is returned when a kind needs a price account and
	// the mapping supplies none.
	ErrAccountRequired = errors.New("price account required for this kind")

	// ErrAccountNotExpected is returned when a self-contained kind is
	// configured with a price account.
	ErrAccountNotExpected = errors.New("no price account expected for this kind")

	// ErrBadTwapSource is returned when a twap entry references a slot whose
	// kind cannot feed an average.
	ErrBadTwapSource = errors.New("twap source slot is not twap-eligible")

	// ErrIndexOutOfRange is returned when a slot index does not address the
	// mapping table.
	ErrIndexOutOfRange = errors.New("mapping slot index out of range")
)
