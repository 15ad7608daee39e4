// Package action implements the Action API (spec.md §4.F): the
// user-facing façade a CLI, desktop app, or language binding calls into.
// Every operation is all-or-nothing locally — it either records its state
// and publishes, or returns an error with no local effect (spec.md §4.F
// failure semantics); a publish failure after a successful local write is
// tolerated and left for the Sync Engine's rebroadcaster (spec.md §4.E).
package action

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/smartvaults/svengine/chain"
	"github.com/smartvaults/svengine/config"
	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/relay"
	"github.com/smartvaults/svengine/store"
	"github.com/smartvaults/svengine/vault"
	"github.com/smartvaults/svengine/walletmgr"
)

// Action is the Action API: the single entry point every participant
// operation goes through. It holds the participant's own identity plus
// every component it orchestrates (spec.md §2: "Action API -> {Event
// Codec -> Relay Client, Wallet Manager, Local Store}").
type Action struct {
	store   *store.Store
	wallets *walletmgr.Manager
	bus     *notifier.Bus
	relays  []relay.Client
	chain   chain.Client

	builder *protocol.Builder
	decoder *protocol.Decoder

	identityPriv *btcec.PrivateKey
	identityPub  ids.PubKey

	// signingKey is the Bitcoin key this participant's vault leaves
	// resolve to, derived once by the Keystore at construction (spec.md
	// §1 Keystore: "derive Bitcoin signing keys"). A deployment that
	// rotates or multiplies signing keys per account is out of this
	// engine's scope; every approve call uses this one key, matching the
	// one-key-per-side shape of the spec.md §8 end-to-end scenarios.
	signingKey *btcec.PrivateKey
}

// New constructs an Action API instance for a single participant.
func New(st *store.Store, wallets *walletmgr.Manager, bus *notifier.Bus, relays []relay.Client, chainClient chain.Client, identity, signingKey *btcec.PrivateKey) *Action {
	return &Action{
		store:        st,
		wallets:      wallets,
		bus:          bus,
		relays:       relays,
		chain:        chainClient,
		builder:      protocol.NewBuilder(),
		decoder:      protocol.NewDecoder(),
		identityPriv: identity,
		identityPub:  protocol.PubKeyFromPrivate(identity),
		signingKey:   signingKey,
	}
}

// Identity returns this participant's public identity.
func (a *Action) Identity() ids.PubKey { return a.identityPub }

// publish persists ev locally, then best-effort publishes it to every
// connected relay. A relay failure is logged and tolerated once the local
// write succeeds (spec.md §4.F failure semantics); the Sync Engine's
// rebroadcaster retries events that never made it out.
func (a *Action) publish(ev *protocol.Event) error {
	if err := a.store.SaveEvent(ev); err != nil {
		return err
	}
	for _, r := range a.relays {
		if err := r.Publish(ev); err != nil {
			log.Warnf("publish %x to %s failed, leaving for rebroadcast: %v", ev.ID, r.URL(), err)
		}
	}
	return nil
}

func containsPubKey(list []ids.PubKey, pk ids.PubKey) bool {
	for _, p := range list {
		if p == pk {
			return true
		}
	}
	return false
}

func otherParticipants(participants []ids.PubKey, self ids.PubKey) []ids.PubKey {
	out := make([]ids.PubKey, 0, len(participants))
	for _, p := range participants {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}

// sharedSigning loads vaultID's shared key and derives the keypair every
// vault-scoped event (vault, proposal, completion, label) is signed by
// (spec.md §4.C).
func (a *Action) sharedSigning(vaultID ids.VaultID) (cryptutil.SharedKey, *btcec.PrivateKey, ids.PubKey, error) {
	key, ok, err := a.store.GetSharedKey(vaultID)
	if err != nil {
		return key, nil, ids.PubKey{}, err
	}
	if !ok {
		return key, nil, ids.PubKey{}, errs.ProtocolPrereq("no shared key known for this vault")
	}
	priv, err := cryptutil.SigningKeyFromShared(key)
	if err != nil {
		return key, nil, ids.PubKey{}, errs.Cryptof("derive shared signing key", err)
	}
	return key, priv, protocol.PubKeyFromPrivate(priv), nil
}

// CreateVault implements `create_vault` (spec.md §4.F): generates a fresh
// shared key, persists the vault and shared key locally, loads the
// wallet, then publishes one shared-key event per participant followed
// by the vault event.
//
// participants is the vault's full participant set; the caller's own
// identity is added automatically if missing before the `|participants|
// >= 2` check runs.
func (a *Action) CreateVault(name, description, descriptor string, participants []ids.PubKey, network config.Network) (ids.VaultID, error) {
	if !containsPubKey(participants, a.identityPub) {
		participants = append(append([]ids.PubKey{}, participants...), a.identityPub)
	}
	if len(participants) < 2 {
		return ids.VaultID{}, errs.Validation("create_vault: a vault requires at least 2 participants")
	}
	if err := vault.ValidateDescriptor(descriptor); err != nil {
		return ids.VaultID{}, err
	}

	key, err := cryptutil.GenerateSharedKey()
	if err != nil {
		return ids.VaultID{}, errs.Cryptof("create_vault: generate shared key", err)
	}
	sharedPriv, err := cryptutil.SigningKeyFromShared(key)
	if err != nil {
		return ids.VaultID{}, errs.Cryptof("create_vault: derive shared signing key", err)
	}
	sharedPub := protocol.PubKeyFromPrivate(sharedPriv)

	vaultPayload, err := protocol.MarshalVaultPayload(protocol.VaultPayload{
		Name:        name,
		Description: description,
		Descriptor:  descriptor,
		Network:     string(network),
	})
	if err != nil {
		return ids.VaultID{}, errs.Walletf("create_vault: encode vault payload", err)
	}

	vaultEvent, err := a.builder.VaultEvent(sharedPriv, sharedPub, key, participants, vaultPayload)
	if err != nil {
		return ids.VaultID{}, errs.Cryptof("create_vault: build vault event", err)
	}
	vaultID := vaultEvent.ID

	v, err := vault.New(vaultID, name, description, descriptor, network, participants)
	if err != nil {
		return ids.VaultID{}, err
	}

	if err := a.store.SaveSharedKey(vaultID, key); err != nil {
		return ids.VaultID{}, err
	}
	if err := a.store.SaveVault(vaultID, v, participants); err != nil {
		return ids.VaultID{}, err
	}
	if err := a.wallets.LoadVault(vaultID, v); err != nil {
		return ids.VaultID{}, err
	}

	for _, p := range participants {
		recipientPub, err := protocol.ParsePubKey(p)
		if err != nil {
			continue // a participant pubkey that can't parse never validated into this set
		}
		skEvent, err := a.builder.SharedKeyEvent(a.identityPriv, a.identityPub, recipientPub, p, vaultID, key)
		if err != nil {
			return ids.VaultID{}, errs.Cryptof("create_vault: build shared-key event", err)
		}
		if err := a.publish(skEvent); err != nil {
			return ids.VaultID{}, err
		}
	}

	if err := a.publish(vaultEvent); err != nil {
		return ids.VaultID{}, err
	}

	if err := a.notify(notifier.NotificationNewVault, vaultID); err != nil {
		return ids.VaultID{}, err
	}
	return vaultID, nil
}

// notify persists a notification row alongside the originating event
// (spec.md §3 Notification: "carries the originating event id and a
// seen/unseen flag") before broadcasting it on the bus, so GetNotifications
// reflects everything a participant's own actions produced, not only what
// the Event Handler observed from the relay.
func (a *Action) notify(kind notifier.NotificationKind, eventID ids.EventID) error {
	if err := a.store.SaveNotification(kind.String(), eventID); err != nil {
		return err
	}
	a.bus.Publish(notifier.Notification(kind, eventID))
	return nil
}

// ErrNotOwned is returned by every delete_*/revoke_approval operation when
// the event being deleted was not authored by the expected signer —
// spec.md §4.F's `TryingToDeleteNotOwnedEvent`.
var ErrNotOwned = errs.Authorization("trying to delete an event not owned by this participant")

// authorizeVaultScoped verifies that id was authored by vaultID's shared
// key, the rule spec.md §4.F states for deleting a vault-scoped object
// (vault, proposal, approval, completion, label).
func (a *Action) authorizeVaultScoped(vaultID, id ids.EventID) error {
	_, _, sharedPub, err := a.sharedSigning(vaultID)
	if err != nil {
		return err
	}
	author, ok, err := a.store.GetEventAuthor(id)
	if err != nil {
		return err
	}
	if !ok || author != sharedPub {
		return ErrNotOwned
	}
	return nil
}

// authorizePersonal verifies that id was authored by this participant's
// own identity, the rule spec.md §4.F states for deleting a personal
// object (a self-authored signer).
func (a *Action) authorizePersonal(id ids.EventID) error {
	author, ok, err := a.store.GetEventAuthor(id)
	if err != nil {
		return err
	}
	if !ok || author != a.identityPub {
		return ErrNotOwned
	}
	return nil
}

// deleteAndNotify publishes a deletion event covering affected, signed by
// signer, then applies the deletion locally via delete_generic_event_id
// (spec.md §4.F: "publish a deletion event ... then locally call
// delete_generic_event_id").
func (a *Action) deleteAndNotify(signerPriv *btcec.PrivateKey, signerPub ids.PubKey, affected []ids.EventID, notify []ids.PubKey) error {
	ev, err := a.builder.DeletionEvent(protocol.DeletionSigner{Priv: signerPriv, PubKey: signerPub}, affected, notify)
	if err != nil {
		return errs.Cryptof("build deletion event", err)
	}
	if err := a.publish(ev); err != nil {
		return err
	}
	for _, id := range affected {
		if err := a.store.DeleteGenericEventID(id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteVault implements `delete_vault` (spec.md §4.F).
func (a *Action) DeleteVault(vaultID ids.VaultID) error {
	if err := a.authorizeVaultScoped(vaultID, vaultID); err != nil {
		return err
	}
	v, ok, err := a.store.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: vault %s not found", vaultID)
	}
	_, sharedPriv, sharedPub, err := a.sharedSigning(vaultID)
	if err != nil {
		return err
	}
	if err := a.deleteAndNotify(sharedPriv, sharedPub, []ids.EventID{vaultID}, otherParticipants(v.Participants, a.identityPub)); err != nil {
		return err
	}
	a.wallets.UnloadVault(vaultID)
	return nil
}
