package walletmgr

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/smartvaults/svengine/errs"
)

func newUnsignedPkt(t *testing.T, lockTime uint32, sequences ...uint32) (*psbt.Packet, map[string]uint32) {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.LockTime = lockTime
	confirmations := make(map[string]uint32, len(sequences))
	for i, seq := range sequences {
		hash := chainhash.Hash{byte(i + 1)}
		op := wire.NewOutPoint(&hash, uint32(i))
		in := wire.NewTxIn(op, nil, nil)
		in.Sequence = seq
		tx.AddTxIn(in)
		confirmations[op.String()] = uint32(i)
	}
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	return pkt, confirmations
}

func TestConfirmationsAt(t *testing.T) {
	require.Equal(t, uint32(0), confirmationsAt(0, 100), "unconfirmed UTXO has 0 confirmations")
	require.Equal(t, uint32(0), confirmationsAt(150, 100), "a height above tip cannot have confirmed yet")
	require.Equal(t, uint32(1), confirmationsAt(100, 100), "a UTXO mined at tip has exactly 1 confirmation")
	require.Equal(t, uint32(11), confirmationsAt(90, 100))
}

func TestEnforceTimelocksNilPacket(t *testing.T) {
	require.NoError(t, enforceTimelocks(nil, nil, 0, time.Now()))
}

func TestEnforceTimelocksNoLocksSucceeds(t *testing.T) {
	pkt, conf := newUnsignedPkt(t, 0, wire.MaxTxInSequenceNum)
	require.NoError(t, enforceTimelocks(pkt, conf, 100, time.Now()))
}

func TestEnforceTimelocksAbsoluteBlockHeightNotYetReached(t *testing.T) {
	pkt, conf := newUnsignedPkt(t, 0)
	pkt.UnsignedTx.LockTime = 200
	err := enforceTimelocks(pkt, conf, 100, time.Now())
	require.ErrorIs(t, err, errs.Wallet("AbsoluteTimelockNotSatisfied"))
}

func TestEnforceTimelocksAbsoluteBlockHeightReached(t *testing.T) {
	pkt, conf := newUnsignedPkt(t, 0)
	pkt.UnsignedTx.LockTime = 200
	require.NoError(t, enforceTimelocks(pkt, conf, 200, time.Now()))
}

func TestEnforceTimelocksAbsoluteTimestampNotYetReached(t *testing.T) {
	pkt, conf := newUnsignedPkt(t, 0)
	pkt.UnsignedTx.LockTime = uint32(time.Now().Add(time.Hour).Unix())
	err := enforceTimelocks(pkt, conf, 999999, time.Now())
	require.ErrorIs(t, err, errs.Wallet("AbsoluteTimelockNotSatisfied"))
}

// pktWithInput builds a single-input unsigned PSBT, the one input carrying
// seq as its nSequence, and returns it alongside that input's outpoint key.
func pktWithInput(t *testing.T, seed byte, seq uint32) (*psbt.Packet, string) {
	t.Helper()
	hash := chainhash.Hash{seed}
	op := wire.NewOutPoint(&hash, 0)
	in := wire.NewTxIn(op, nil, nil)
	in.Sequence = seq

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(in)
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	return pkt, op.String()
}

func TestEnforceTimelocksRelativeBlocksNotSatisfied(t *testing.T) {
	pkt, key := pktWithInput(t, 1, 10) // requires 10 confirmations, relative-blocks form

	conf := map[string]uint32{key: 3}
	err := enforceTimelocks(pkt, conf, 1000, time.Now())
	require.ErrorIs(t, err, errs.Wallet("RelativeTimelockNotSatisfied"))

	conf[key] = 10
	require.NoError(t, enforceTimelocks(pkt, conf, 1000, time.Now()))
}

func TestEnforceTimelocksRelativeSecondsNotSatisfied(t *testing.T) {
	// 2 units * 512s granularity = 1024s required, seconds-form flag set.
	pkt, key := pktWithInput(t, 2, sequenceLockTimeTypeFlag|2)

	conf := map[string]uint32{key: 1} // 1 confirmation * 600s/block = 600s, short of 1024s
	err := enforceTimelocks(pkt, conf, 1000, time.Now())
	require.ErrorIs(t, err, errs.Wallet("RelativeTimelockNotSatisfied"))

	conf[key] = 2 // 1200s, enough
	require.NoError(t, enforceTimelocks(pkt, conf, 1000, time.Now()))
}

func TestEnforceTimelocksDisableFlagSkipsInput(t *testing.T) {
	pkt, _ := pktWithInput(t, 3, sequenceLockTimeDisableFlag|50)

	// No confirmations entry at all for this outpoint; a disabled relative
	// lock must not be enforced regardless.
	require.NoError(t, enforceTimelocks(pkt, map[string]uint32{}, 1000, time.Now()))
}
