package refresh

import (
	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/oracle"
)

// ExtraAccountKeys lists the auxiliary accounts a kind's adapter will draw,
// in draw order, read from the base account's own configuration. Kinds not
// listed here consume nothing from the stream.
func ExtraAccountKeys(kind oracle.Kind, base *accounts.Account) []domain.PubKey {
	if base == nil {
		return nil
	}
	switch kind {
	case oracle.KVault:
		// Vault layout: token A feed key at 40, token B feed key at 72.
		if len(base.Data) < 104 {
			return nil
		}
		return []domain.PubKey{
			domain.PubKey(base.Data[40:72]),
			domain.PubKey(base.Data[72:104]),
		}
	case oracle.JupiterLpCompute:
		// Pool layout: custody table at 82, feed key at offset 32 of each
		// 75-byte custody record.
		if len(base.Data) < 82 {
			return nil
		}
		count := int(base.Data[81])
		var keys []domain.PubKey
		for i := 0; i < count; i++ {
			off := 82 + i*75 + 32
			if len(base.Data) < off+32 {
				return nil
			}
			keys = append(keys, domain.PubKey(base.Data[off:off+32]))
		}
		return keys
	default:
		return nil
	}
}
