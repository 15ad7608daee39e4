package testutil

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/smartvaults/svengine/action"
	"github.com/smartvaults/svengine/chain"
	"github.com/smartvaults/svengine/config"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/protocol"
)

// regtestAddress returns a fresh, valid regtest P2TR address string, used
// only as a spend destination — its underlying key is never referenced
// again.
func regtestAddress(t *testing.T) string {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(priv.PubKey()), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

// TestScenarioTwoParticipantVaultSpendApproveFinalize exercises spec.md
// §8's end-to-end shape: Alice creates a vault naming Bob as a
// co-participant, Bob's replica converges on the vault from the shared
// relay alone, Alice spends and self-approves (her signing key is the
// vault's sole taproot internal key), and once she finalizes, Bob's
// replica converges on the completion and the now-deleted proposal.
func TestScenarioTwoParticipantVaultSpendApproveFinalize(t *testing.T) {
	h := NewHarness(t, "mem://e2e")
	fakeChain := NewFakeChainClient()

	alice := h.NewParticipantWithChain("alice", fakeChain)
	bob := h.NewParticipantWithChain("bob", fakeChain)

	internalKeyHex := protocol.PubKeyFromPrivate(alice.SigningKey).String()
	descriptor := "tr(" + internalKeyHex + ")"

	vaultID, err := alice.Action.CreateVault("Savings", "shared savings vault", descriptor, []ids.PubKey{bob.Pub}, config.Regtest)
	require.NoError(t, err)

	h.Deliver(bob)

	bobVault, ok, err := bob.Store.GetVault(vaultID)
	require.NoError(t, err)
	require.True(t, ok, "bob's replica should have converged on the new vault")
	require.True(t, bobVault.IsInternalKey(protocol.PubKeyFromPrivate(alice.SigningKey)))
	require.False(t, bobVault.IsInternalKey(bob.Pub))

	utxoTxID := strings.Repeat("11", 32)
	fakeChain.SeedUTXO(descriptor, chain.UTXO{TxID: utxoTxID, Vout: 0, Value: 100_000, Height: 50})
	require.NoError(t, alice.Wallets.Sync(vaultID))

	dest := regtestAddress(t)
	spent, err := alice.Action.Spend(vaultID, action.SpendParams{
		ToAddress:          dest,
		AmountSats:         40_000,
		Description:        "pay the roofer",
		FeeRateSatPerVByte: 1,
	})
	require.NoError(t, err)
	require.Equal(t, vaultID, spent.VaultID)

	h.Deliver(bob)
	_, ok, err = bob.Store.GetProposal(spent.ProposalID)
	require.NoError(t, err)
	require.True(t, ok, "bob's replica should have received the proposal")

	require.NoError(t, alice.Action.Approve(spent.ProposalID))

	completion, err := alice.Action.Finalize(spent.ProposalID)
	require.NoError(t, err)
	require.Len(t, fakeChain.Broadcasts, 1)
	require.Equal(t, completion.TxHex, fakeChain.Broadcasts[0])

	h.Deliver(bob)
	bobCompletion, ok, err := bob.Store.GetCompletion(spent.ProposalID)
	require.NoError(t, err)
	require.True(t, ok, "bob's replica should have converged on the completion")
	require.Equal(t, completion.TxHex, bobCompletion.TxHex)

	_, ok, err = bob.Store.GetProposal(spent.ProposalID)
	require.NoError(t, err)
	require.False(t, ok, "bob's replica should drop the proposal once completed")
}
