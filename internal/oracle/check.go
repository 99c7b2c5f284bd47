package oracle

import (
	"fmt"

	"solana-price-oracle/internal/accounts"
)

// CheckNoExtraAccounts verifies the auxiliary account stream was fully
// drained by the dispatch call. Run once per top-level request, after the
// last adapter returned; surplus accounts are a caller error, never an
// adapter's.
func CheckNoExtraAccounts(extra *accounts.Iterator) error {
	if n := extra.Remaining(); n > 0 {
		return fmt.Errorf("%w: %d left in stream", ErrUnexpectedAccount, n)
	}
	return nil
}
