// Package txid derives the deterministic ordering tiebreaker the core
// treats as an opaque caller-supplied value (the order field on each
// transaction) from a real transaction ID, the way a host process
// feeding the Handle would.
package txid

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DeriveOrder parses rawTxID (a big-endian hex string, as returned by
// any Bitcoin RPC) and folds the leading 4 bytes of its internal
// (little-endian) representation into a uint32. Two distinct txids
// collide only as often as a uniformly random 32-bit space predicts,
// which is exactly the property the core's tie-break needs.
func DeriveOrder(rawTxID string) (uint32, error) {
	hash, err := chainhash.NewHashFromStr(rawTxID)
	if err != nil {
		return 0, fmt.Errorf("txid: %w", err)
	}
	return binary.LittleEndian.Uint32(hash[:4]), nil
}
