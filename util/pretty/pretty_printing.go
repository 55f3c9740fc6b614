// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package pretty

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

func FirstFewBytes(b []byte) string {
	if len(b) < 9 {
		return fmt.Sprintf("[% x]", b)
	} else {
		return fmt.Sprintf("[% x ... ]", b[:8])
	}
}

// PrefixHash renders the first four bytes of a hash, enough to locate a
// record in the API responses without flooding the output.
func PrefixHash(h common.Hash) string {
	return fmt.Sprintf("%#x", h[:4])
}
