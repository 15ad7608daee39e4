package walletmgr

import (
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/smartvaults/svengine/errs"
)

// lockTimeThreshold mirrors BIP65/wire's split between a block-height
// nLockTime (below this) and a unix-timestamp nLockTime (at or above it).
const lockTimeThreshold = 500000000

// BIP68 relative-locktime bit layout, mirrored from wire.MsgTx's sequence
// field semantics rather than imported from btcd's chain-indexing
// blockchain package, which this wallet never otherwise depends on.
const (
	sequenceLockTimeDisableFlag = 1 << 31
	sequenceLockTimeTypeFlag    = 1 << 22
	sequenceLockTimeMask        = 0x0000ffff
	sequenceLockTimeGranularity = 9 // 1 unit = 512 seconds
	secondsPerBlock             = 600
)

// enforceTimelocks implements spec.md §4.B's "enforce both timelocks"
// clause: pkt's absolute nLockTime must be satisfied at now/tip, and every
// input requesting a BIP68 relative locktime must be old enough, judged by
// confirmations (keyed by "txid:vout", as reported by the wallet's last
// sync).
func enforceTimelocks(pkt *psbt.Packet, confirmations map[string]uint32, tip uint32, now time.Time) error {
	if pkt == nil || pkt.UnsignedTx == nil {
		return nil
	}
	tx := pkt.UnsignedTx

	if lockTime := tx.LockTime; lockTime != 0 {
		var satisfied bool
		if lockTime >= lockTimeThreshold {
			satisfied = uint32(now.Unix()) >= lockTime
		} else {
			satisfied = tip >= lockTime
		}
		if !satisfied {
			return errs.Wallet("AbsoluteTimelockNotSatisfied")
		}
	}

	for _, in := range tx.TxIn {
		seq := in.Sequence
		if seq&sequenceLockTimeDisableFlag != 0 {
			continue
		}
		key := in.PreviousOutPoint.String()
		conf := confirmations[key]
		if seq&sequenceLockTimeTypeFlag != 0 {
			requiredSeconds := (seq & sequenceLockTimeMask) << sequenceLockTimeGranularity
			elapsedSeconds := conf * secondsPerBlock
			if elapsedSeconds < requiredSeconds {
				return errs.Wallet("RelativeTimelockNotSatisfied")
			}
			continue
		}
		requiredConfs := seq & sequenceLockTimeMask
		if conf < requiredConfs {
			return errs.Wallet("RelativeTimelockNotSatisfied")
		}
	}
	return nil
}
