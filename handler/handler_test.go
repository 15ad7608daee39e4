package handler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/smartvaults/svengine/config"
	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/store"
	"github.com/smartvaults/svengine/walletmgr"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	identityKey, err := cryptutil.GenerateSharedKey()
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(t.TempDir(), "handler.db"), identityKey)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newIdentity(t *testing.T) (*btcec.PrivateKey, ids.PubKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv, protocol.PubKeyFromPrivate(priv)
}

// vaultFixture builds a signed vault-creation event plus the per-participant
// shared-key events needed to decrypt it, mirroring the two-of-two scenario
// in spec.md §8.
type vaultFixture struct {
	builder   *protocol.Builder
	key       cryptutil.SharedKey
	sharedPriv *btcec.PrivateKey
	sharedPub  ids.PubKey
	vaultEvent *protocol.Event
	vaultID    ids.VaultID
}

func newVaultFixture(t *testing.T, participants []ids.PubKey) *vaultFixture {
	t.Helper()
	b := protocol.NewBuilder()
	key, err := cryptutil.GenerateSharedKey()
	require.NoError(t, err)
	sharedPriv, err := cryptutil.SigningKeyFromShared(key)
	require.NoError(t, err)
	sharedPub := protocol.PubKeyFromPrivate(sharedPriv)

	vaultJSON, err := protocol.MarshalVaultPayload(protocol.VaultPayload{
		Name:         "test vault",
		Description:  "fixture",
		Descriptor:   "tr(" + participants[0].String() + ")",
		Network:      string(config.Regtest),
		Participants: nil,
	})
	require.NoError(t, err)

	vaultEv, err := b.VaultEvent(sharedPriv, sharedPub, key, participants, vaultJSON)
	require.NoError(t, err)

	return &vaultFixture{
		builder:    b,
		key:        key,
		sharedPriv: sharedPriv,
		sharedPub:  sharedPub,
		vaultEvent: vaultEv,
		vaultID:    vaultEv.ID,
	}
}

// sharedKeyEventFor builds the event that discloses vf's shared key to
// recipient, authored by author.
func (vf *vaultFixture) sharedKeyEventFor(t *testing.T, author *btcec.PrivateKey, authorPub ids.PubKey, recipientPub ids.PubKey) *protocol.Event {
	t.Helper()
	recipientFull, err := protocol.ParsePubKey(recipientPub)
	require.NoError(t, err)
	ev, err := vf.builder.SharedKeyEvent(author, authorPub, recipientFull, recipientPub, vf.vaultID, vf.key)
	require.NoError(t, err)
	return ev
}

func newHandler(t *testing.T, st *store.Store, identity *btcec.PrivateKey) (*Handler, *notifier.Bus) {
	t.Helper()
	wallets := walletmgr.New(nil, nil)
	bus := notifier.New()
	t.Cleanup(bus.Close)
	return New(st, wallets, bus, identity, nil), bus
}

func TestHandleVaultDeferredUntilSharedKeyArrives(t *testing.T) {
	privA, pubA := newIdentity(t)
	_, pubB := newIdentity(t)
	vf := newVaultFixture(t, []ids.PubKey{pubA, pubB})

	st := newTestStore(t)
	h, _ := newHandler(t, st, privA)

	err := h.Handle(vf.vaultEvent)
	require.ErrorIs(t, err, ErrDeferred)

	exists, err := st.VaultExists(vf.vaultID)
	require.NoError(t, err)
	require.False(t, exists)

	pending, err := st.PendingEventExists(vf.vaultEvent.ID)
	require.NoError(t, err)
	require.True(t, pending)
}

func TestHandleSharedKeyReplaysPendingVault(t *testing.T) {
	privA, pubA := newIdentity(t)
	privB, pubB := newIdentity(t)
	vf := newVaultFixture(t, []ids.PubKey{pubA, pubB})

	st := newTestStore(t)
	h, bus := newHandler(t, st, privB)
	msgs, cancel := bus.Subscribe()
	defer cancel()

	require.ErrorIs(t, h.Handle(vf.vaultEvent), ErrDeferred)

	sharedKeyEv := vf.sharedKeyEventFor(t, privA, pubA, pubB)
	require.NoError(t, h.Handle(sharedKeyEv))

	exists, err := st.VaultExists(vf.vaultID)
	require.NoError(t, err)
	require.True(t, exists, "replay should have drained the pending vault event")

	pending, err := st.PendingEventExists(vf.vaultEvent.ID)
	require.NoError(t, err)
	require.False(t, pending)

	// The shared-key handler announces itself before replaying the pending
	// vault event, so EventHandled(SharedKey) precedes the NewVault
	// notification on the bus.
	select {
	case m := <-msgs:
		require.Equal(t, notifier.KindEventHandled, m.Kind)
		require.Equal(t, "SharedKey", m.EventKind)
	case <-time.After(time.Second):
		t.Fatal("expected an EventHandled(SharedKey) message on the bus")
	}

	select {
	case m := <-msgs:
		require.Equal(t, notifier.KindNotification, m.Kind)
		require.Equal(t, notifier.NotificationNewVault, m.NotificationKind)
	case <-time.After(time.Second):
		t.Fatal("expected a NewVault notification on the bus")
	}
}

func TestHandleProposalPersistsAndIsIdempotent(t *testing.T) {
	privA, pubA := newIdentity(t)
	_, pubB := newIdentity(t)
	vf := newVaultFixture(t, []ids.PubKey{pubA, pubB})

	st := newTestStore(t)
	h, _ := newHandler(t, st, privA)

	sharedKeyEv := vf.sharedKeyEventFor(t, privA, pubA, pubA)
	require.NoError(t, h.Handle(sharedKeyEv))
	require.NoError(t, h.Handle(vf.vaultEvent))

	proposalJSON, err := protocol.MarshalProposalPayload(protocol.ProposalPayload{
		Type:       1,
		Descriptor: "tr(" + pubA.String() + ")",
		ToAddress:  "bcrt1qexample",
		Amount:     1000,
		PSBT:       "",
	})
	require.NoError(t, err)
	proposalEv, err := vf.builder.ProposalEvent(vf.sharedPriv, vf.sharedPub, vf.key, vf.vaultID, []ids.PubKey{pubA, pubB}, proposalJSON)
	require.NoError(t, err)

	require.NoError(t, h.Handle(proposalEv))

	exists, err := st.ProposalExists(proposalEv.ID)
	require.NoError(t, err)
	require.True(t, exists)

	// Redelivery is idempotent: the existence guard short-circuits before
	// any decrypt/persist work.
	require.NoError(t, h.Handle(proposalEv))
}

func TestHandleDeletionAuthorization(t *testing.T) {
	privA, pubA := newIdentity(t)
	privB, pubB := newIdentity(t)
	vf := newVaultFixture(t, []ids.PubKey{pubA, pubB})

	st := newTestStore(t)
	h, _ := newHandler(t, st, privA)
	require.NoError(t, h.Handle(vf.sharedKeyEventFor(t, privA, pubA, pubA)))
	require.NoError(t, h.Handle(vf.vaultEvent))

	proposalJSON, err := protocol.MarshalProposalPayload(protocol.ProposalPayload{Type: 1, Descriptor: "tr(" + pubA.String() + ")"})
	require.NoError(t, err)
	proposalEv, err := vf.builder.ProposalEvent(vf.sharedPriv, vf.sharedPub, vf.key, vf.vaultID, []ids.PubKey{pubA, pubB}, proposalJSON)
	require.NoError(t, err)
	require.NoError(t, h.Handle(proposalEv))

	// Unauthorized: deletion signed by a key that didn't author the
	// proposal (the proposal is signed by the shared key, not privB).
	unauthorizedDel, err := vf.builder.DeletionEvent(
		protocol.DeletionSigner{Priv: privB, PubKey: pubB},
		[]ids.EventID{proposalEv.ID},
		[]ids.PubKey{pubA},
	)
	require.NoError(t, err)
	require.NoError(t, h.Handle(unauthorizedDel))

	stillExists, err := st.ProposalExists(proposalEv.ID)
	require.NoError(t, err)
	require.True(t, stillExists, "deletion by a non-author must be silently dropped")

	// Authorized: deletion signed by the shared key, the proposal's actual
	// author.
	authorizedDel, err := vf.builder.DeletionEvent(
		protocol.DeletionSigner{Priv: vf.sharedPriv, PubKey: vf.sharedPub},
		[]ids.EventID{proposalEv.ID},
		[]ids.PubKey{pubB},
	)
	require.NoError(t, err)
	require.NoError(t, h.Handle(authorizedDel))

	gone, err := st.ProposalExists(proposalEv.ID)
	require.NoError(t, err)
	require.False(t, gone)
}

func TestHandleTombstoneDedup(t *testing.T) {
	privA, pubA := newIdentity(t)
	_, pubB := newIdentity(t)
	vf := newVaultFixture(t, []ids.PubKey{pubA, pubB})

	st := newTestStore(t)
	h, _ := newHandler(t, st, privA)
	require.NoError(t, h.Handle(vf.sharedKeyEventFor(t, privA, pubA, pubA)))
	require.NoError(t, h.Handle(vf.vaultEvent))

	proposalJSON, err := protocol.MarshalProposalPayload(protocol.ProposalPayload{Type: 1, Descriptor: "tr(" + pubA.String() + ")"})
	require.NoError(t, err)
	proposalEv, err := vf.builder.ProposalEvent(vf.sharedPriv, vf.sharedPub, vf.key, vf.vaultID, []ids.PubKey{pubA, pubB}, proposalJSON)
	require.NoError(t, err)
	require.NoError(t, h.Handle(proposalEv))

	del, err := vf.builder.DeletionEvent(protocol.DeletionSigner{Priv: vf.sharedPriv, PubKey: vf.sharedPub}, []ids.EventID{proposalEv.ID}, nil)
	require.NoError(t, err)
	require.NoError(t, h.Handle(del))

	// A redelivered copy of the original proposal event must not resurrect
	// the deleted proposal.
	require.NoError(t, h.Handle(proposalEv))
	exists, err := st.ProposalExists(proposalEv.ID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestHandleSignerSelfAuthoredOnly(t *testing.T) {
	privA, pubA := newIdentity(t)
	privB, _ := newIdentity(t)

	st := newTestStore(t)
	h, _ := newHandler(t, st, privA)

	b := protocol.NewBuilder()
	signerJSON, err := protocol.MarshalSignerPayload(protocol.SignerPayload{
		Name:        "seed",
		Fingerprint: "deadbeef",
		Descriptor:  "tr(" + pubA.String() + ")",
		Type:        1,
	})
	require.NoError(t, err)

	// Authored by someone else: must be dropped, never decrypted as ours.
	foreignEv, err := b.SignerEvent(privB, protocol.PubKeyFromPrivate(privB), signerJSON)
	require.NoError(t, err)
	require.NoError(t, h.Handle(foreignEv))

	signers, err := st.ListSigners()
	require.NoError(t, err)
	require.Empty(t, signers)

	ownEv, err := b.SignerEvent(privA, pubA, signerJSON)
	require.NoError(t, err)
	require.NoError(t, h.Handle(ownEv))

	signers, err = st.ListSigners()
	require.NoError(t, err)
	require.Len(t, signers, 1)
}
