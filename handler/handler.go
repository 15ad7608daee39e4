// Package handler implements the Event Handler (spec.md §4.D): a total
// state machine that routes one inbound signed event at a time to store
// mutations, deferring anything whose prerequisite hasn't arrived yet.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/smartvaults/svengine/config"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/label"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/proposal"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/signer"
	"github.com/smartvaults/svengine/store"
	"github.com/smartvaults/svengine/vault"
	"github.com/smartvaults/svengine/walletmgr"
)

// ErrDeferred signals that Handle queued ev as pending because a
// prerequisite (usually the vault's shared key) hasn't arrived yet
// (spec.md §4.D "save pending"). It is not a failure: the pending-event
// replayer retries ev later without bumping its failure count.
var ErrDeferred = errors.New("handler: prerequisite missing, event deferred")

// Publisher broadcasts a signed event to every connected relay. Handler
// only needs this for the rare case where processing an inbound event
// produces an outbound one (an auto-answered nostr-connect request); the
// Sync Engine/Action API wire in the relay pool, keeping this package free
// of a relay dependency.
type Publisher func(ev *protocol.Event) error

// Handler dispatches events by kind per spec.md §4.D's guard/effect table.
type Handler struct {
	store   *store.Store
	wallets *walletmgr.Manager
	bus     *notifier.Bus
	decoder *protocol.Decoder
	builder *protocol.Builder

	identityPriv *btcec.PrivateKey
	identityPub  ids.PubKey

	publish Publisher
}

// New constructs a Handler for a participant identified by identity.
// publish may be nil if this participant never needs to auto-answer
// nostr-connect requests.
func New(st *store.Store, wallets *walletmgr.Manager, bus *notifier.Bus, identity *btcec.PrivateKey, publish Publisher) *Handler {
	return &Handler{
		store:        st,
		wallets:      wallets,
		bus:          bus,
		decoder:      protocol.NewDecoder(),
		builder:      protocol.NewBuilder(),
		identityPriv: identity,
		identityPub:  protocol.PubKeyFromPrivate(identity),
		publish:      publish,
	}
}

// Handle routes ev to its kind's handler. It is total: every branch
// returns nil (dropped or fully applied), ErrDeferred (queued, retry
// later), or a genuine error the caller should surface.
func (h *Handler) Handle(ev *protocol.Event) error {
	ok, err := ev.Verify()
	if err != nil || !ok {
		return nil
	}
	deleted, err := h.store.EventWasDeleted(ev.ID)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}
	if err := h.store.SaveEvent(ev); err != nil {
		return err
	}

	switch ev.Kind {
	case protocol.KindSharedKey:
		return h.handleSharedKey(ev)
	case protocol.KindVault:
		return h.handleVault(ev)
	case protocol.KindProposal:
		return h.handleProposal(ev)
	case protocol.KindApprovedProposal:
		return h.handleApproval(ev)
	case protocol.KindCompletedProposal:
		return h.handleCompletion(ev)
	case protocol.KindSigner:
		return h.handleSigner(ev)
	case protocol.KindSharedSigner:
		return h.handleSharedSigner(ev)
	case protocol.KindLabel:
		return h.handleLabel(ev)
	case protocol.KindDeletion:
		return h.handleDeletion(ev)
	case protocol.KindContactList:
		return h.handleContactList(ev)
	case protocol.KindMetadata:
		return h.handleMetadata(ev)
	case protocol.KindNostrConnect:
		return h.handleNostrConnect(ev)
	default:
		return nil
	}
}

// ReplayPending resubmits every queued pending event to Handle (spec.md
// §4.E pending-event replayer): dropped on success, left queued if still
// deferred, failure-counted otherwise. handleSharedKey also calls this
// directly right after recording a new shared key, per spec.md §4.D's
// ordering note.
func (h *Handler) ReplayPending() error {
	pending, err := h.store.GetPendingEvents()
	if err != nil {
		return err
	}
	for _, ev := range pending {
		switch err := h.Handle(ev); {
		case err == nil:
			if delErr := h.store.DeletePendingEvent(ev.ID); delErr != nil {
				return delErr
			}
		case errors.Is(err, ErrDeferred):
			// prerequisite still missing; leave queued for the next pass.
		default:
			if bumpErr := h.store.BumpPendingFailure(ev.ID); bumpErr != nil {
				return bumpErr
			}
		}
	}
	return nil
}

func (h *Handler) deferEvent(ev *protocol.Event) error {
	if err := h.store.SavePendingEvent(ev); err != nil {
		return err
	}
	return ErrDeferred
}

// notify persists a notification row for eventID (spec.md §3 Notification:
// "carries the originating event id and a seen/unseen flag") before
// broadcasting it on the bus.
func (h *Handler) notify(kind notifier.NotificationKind, eventID ids.EventID) error {
	if err := h.store.SaveNotification(kind.String(), eventID); err != nil {
		return err
	}
	h.bus.Publish(notifier.Notification(kind, eventID))
	return nil
}

// --- Shared-key -------------------------------------------------------

func (h *Handler) handleSharedKey(ev *protocol.Event) error {
	eids := ev.EventIDs()
	if len(eids) == 0 {
		return nil
	}
	vaultID := eids[0]
	exists, err := h.store.SharedKeyExistsForVault(vaultID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	key, err := h.decoder.DecryptSharedKeyEvent(ev, h.identityPriv)
	if err != nil {
		return nil // not addressed to us, or tampered
	}
	if err := h.store.SaveSharedKey(vaultID, key); err != nil {
		return err
	}
	h.bus.Publish(notifier.EventHandled("SharedKey", ev.ID))
	return h.ReplayPending()
}

// --- Vault --------------------------------------------------------------

func (h *Handler) handleVault(ev *protocol.Event) error {
	vaultID := ev.ID // a vault is keyed by the id of its own creation event
	exists, err := h.store.VaultExists(vaultID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	key, ok, err := h.store.GetSharedKey(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return h.deferEvent(ev)
	}
	plaintext, err := h.decoder.DecryptVaultScoped(ev, key)
	if err != nil {
		return nil
	}
	payload, err := protocol.UnmarshalVaultPayload(plaintext)
	if err != nil {
		return nil
	}
	participants := ev.PubKeys()
	v, err := vault.New(vaultID, payload.Name, payload.Description, payload.Descriptor, config.Network(payload.Network), participants)
	if err != nil {
		return nil
	}
	if err := h.store.SaveVault(vaultID, v, participants); err != nil {
		return err
	}
	if err := h.wallets.LoadVault(vaultID, v); err != nil {
		return err
	}
	return h.notify(notifier.NotificationNewVault, ev.ID)
}

// --- Proposal -------------------------------------------------------------

func (h *Handler) handleProposal(ev *protocol.Event) error {
	exists, err := h.store.ProposalExists(ev.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	eids := ev.EventIDs()
	if len(eids) == 0 {
		return nil
	}
	vaultID := eids[0]
	key, ok, err := h.store.GetSharedKey(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return h.deferEvent(ev)
	}
	plaintext, err := h.decoder.DecryptVaultScoped(ev, key)
	if err != nil {
		return nil
	}
	payload, err := protocol.UnmarshalProposalPayload(plaintext)
	if err != nil {
		return nil
	}
	pkt, err := proposal.DecodePSBT(payload.PSBT)
	if err != nil {
		return nil
	}
	p := &proposal.Proposal{
		ID:               ev.ID,
		VaultID:          vaultID,
		Type:             proposal.Type(payload.Type),
		Descriptor:       payload.Descriptor,
		ToAddress:        payload.ToAddress,
		Amount:           btcutil.Amount(payload.Amount),
		Description:      payload.Description,
		Message:          payload.Message,
		SignerDescriptor: payload.SignerDescriptor,
		Period:           proposal.Period{From: time.Unix(payload.PeriodFrom, 0), To: time.Unix(payload.PeriodTo, 0)},
		PSBT:             pkt,
	}
	if err := h.store.SaveProposal(p); err != nil {
		return err
	}
	return h.notify(notifier.NotificationNewProposal, ev.ID)
}

// --- Approval ---------------------------------------------------------

func (h *Handler) handleApproval(ev *protocol.Event) error {
	eids := ev.EventIDs()
	if len(eids) < 2 {
		return nil
	}
	proposalID, vaultID := eids[0], eids[1]
	key, ok, err := h.store.GetSharedKey(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return h.deferEvent(ev)
	}
	plaintext, err := h.decoder.DecryptVaultScoped(ev, key)
	if err != nil {
		return nil
	}
	payload, err := protocol.UnmarshalApprovalPayload(plaintext)
	if err != nil {
		return nil
	}
	pkt, err := proposal.DecodePSBT(payload.PSBT)
	if err != nil {
		return nil
	}
	expiration, _ := ev.Expiration()
	a := &proposal.Approval{
		ID:         ev.ID,
		ProposalID: proposalID,
		VaultID:    vaultID,
		Type:       proposal.Type(payload.Type),
		Author:     ev.PubKey,
		Timestamp:  time.Unix(ev.CreatedAt, 0),
		Expiration: expiration,
		PSBT:       pkt,
	}
	if err := h.store.SaveApproval(a); err != nil {
		return err
	}
	return h.notify(notifier.NotificationNewApproval, ev.ID)
}

// --- Completion -------------------------------------------------------

func (h *Handler) handleCompletion(ev *protocol.Event) error {
	eids := ev.EventIDs()
	if len(eids) < 2 {
		return nil
	}
	proposalID, vaultID := eids[0], eids[1]
	key, ok, err := h.store.GetSharedKey(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return h.deferEvent(ev)
	}
	existingProposal, exists, err := h.store.GetProposal(proposalID)
	if err != nil {
		return err
	}
	if !exists {
		return h.deferEvent(ev)
	}
	plaintext, err := h.decoder.DecryptVaultScoped(ev, key)
	if err != nil {
		return nil
	}
	payload, err := protocol.UnmarshalCompletionPayload(plaintext)
	if err != nil {
		return nil
	}
	pkt, err := proposal.DecodePSBT(payload.PSBT)
	if err != nil {
		return nil
	}
	c := &proposal.Completion{
		ID:               ev.ID,
		ProposalID:       proposalID,
		VaultID:          vaultID,
		Type:             proposal.Type(payload.Type),
		TxHex:            payload.TxHex,
		Description:      payload.Description,
		SignerDescriptor: payload.SignerDescriptor,
		Period:           proposal.Period{From: time.Unix(payload.PeriodFrom, 0), To: time.Unix(payload.PeriodTo, 0)},
		Message:          payload.Message,
		Descriptor:       payload.Descriptor,
		PSBT:             pkt,
	}
	h.unfreezeProposalInputs(vaultID, existingProposal)
	if err := h.store.SaveCompletion(c); err != nil {
		return err
	}
	return h.notify(notifier.NotificationNewCompletedProposal, ev.ID)
}

func (h *Handler) unfreezeProposalInputs(vaultID ids.VaultID, p *proposal.Proposal) {
	if p == nil || p.PSBT == nil || p.PSBT.UnsignedTx == nil {
		return
	}
	for _, in := range p.PSBT.UnsignedTx.TxIn {
		outpoint := fmt.Sprintf("%s:%d", in.PreviousOutPoint.Hash.String(), in.PreviousOutPoint.Index)
		_ = h.wallets.UnfreezeOutpoint(vaultID, outpoint)
	}
}

// --- Signer / shared signer --------------------------------------------

func (h *Handler) handleSigner(ev *protocol.Event) error {
	if ev.PubKey != h.identityPub {
		return nil
	}
	plaintext, err := h.decoder.DecryptSignerSelf(ev, h.identityPriv)
	if err != nil {
		return nil
	}
	payload, err := protocol.UnmarshalSignerPayload(plaintext)
	if err != nil {
		return nil
	}
	sgn, err := signer.New(payload.Name, payload.Description, payload.Fingerprint, payload.Descriptor, signer.Type(payload.Type))
	if err != nil {
		return nil
	}
	return h.store.SaveSigner(ev.ID, sgn)
}

func (h *Handler) handleSharedSigner(ev *protocol.Event) error {
	if ev.PubKey == h.identityPub {
		return nil
	}
	plaintext, err := h.decoder.DecryptSharedSigner(ev, h.identityPriv)
	if err != nil {
		return nil
	}
	payload, err := protocol.UnmarshalSharedSignerPayload(plaintext)
	if err != nil {
		return nil
	}
	shared := &signer.SharedSigner{Fingerprint: payload.Fingerprint, Descriptor: payload.Descriptor}
	if err := h.store.SaveSharedSigner(ev.ID, ev.PubKey, shared); err != nil {
		return err
	}
	return h.notify(notifier.NotificationNewSharedSigner, ev.ID)
}

// --- Label ----------------------------------------------------------------

func (h *Handler) handleLabel(ev *protocol.Event) error {
	identifier, ok := ev.Identifier()
	if !ok {
		return nil
	}
	eids := ev.EventIDs()
	if len(eids) == 0 {
		return nil
	}
	vaultID := eids[0]
	key, ok, err := h.store.GetSharedKey(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return h.deferEvent(ev)
	}
	plaintext, err := h.decoder.DecryptVaultScoped(ev, key)
	if err != nil {
		return nil
	}
	payload, err := protocol.UnmarshalLabelPayload(plaintext)
	if err != nil {
		return nil
	}
	l := &label.Label{
		VaultID: vaultID,
		Data:    label.Data{Kind: label.Kind(payload.Kind), Value: payload.Value},
		Text:    payload.Text,
	}
	return h.store.SaveLabel(vaultID, identifier, l)
}

// --- Deletion ---------------------------------------------------------

func (h *Handler) handleDeletion(ev *protocol.Event) error {
	for _, id := range ev.EventIDs() {
		author, ok, err := h.store.GetEventAuthor(id)
		if err != nil {
			return err
		}
		if !ok || author != ev.PubKey {
			continue // unknown id, or author mismatch: silently drop
		}
		if err := h.store.DeleteGenericEventID(id); err != nil {
			return err
		}
	}
	return nil
}

// --- Contact list / metadata --------------------------------------------

func (h *Handler) handleContactList(ev *protocol.Event) error {
	if ev.PubKey != h.identityPub {
		return nil
	}
	petnames, err := protocol.UnmarshalContactListPayload([]byte(ev.Content))
	if err != nil {
		return nil
	}
	contacts := make(map[ids.PubKey]string, len(ev.PubKeys()))
	for _, pk := range ev.PubKeys() {
		contacts[pk] = petnames[pk.String()]
	}
	return h.store.ReplaceContacts(contacts)
}

func (h *Handler) handleMetadata(ev *protocol.Event) error {
	payload, err := protocol.UnmarshalMetadataPayload([]byte(ev.Content))
	if err != nil {
		return nil
	}
	return h.store.UpsertMetadata(ev.PubKey, payload.Name, payload.About, time.Now())
}

// --- Nostr-connect ------------------------------------------------------

// isImmediateConnectMethod reports whether method never needs user
// judgment (spec.md §4.F: "respond to GetPublicKey and Disconnect
// immediately").
func isImmediateConnectMethod(method string) bool {
	switch method {
	case "get_public_key", "disconnect":
		return true
	default:
		return false
	}
}

func (h *Handler) handleNostrConnect(ev *protocol.Event) error {
	session, ok, err := h.store.GetConnectSession(ev.PubKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil // no open session: drop
	}
	plaintext, err := h.decoder.DecryptNostrConnect(ev, h.identityPriv)
	if err != nil {
		return nil
	}
	req, err := protocol.UnmarshalConnectRequestPayload(plaintext)
	if err != nil {
		return nil
	}
	reqID, err := ids.EventIDFromHex(req.ID)
	if err != nil {
		return nil
	}
	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return nil
	}

	autoApprove := session.SessionPreauthorized(time.Now()) || isImmediateConnectMethod(req.Method)
	if err := h.store.SaveConnectRequest(reqID, ev.PubKey, req.Method, string(paramsJSON), autoApprove); err != nil {
		return err
	}
	if !autoApprove {
		return nil
	}
	return h.respondConnect(ev.PubKey, req)
}

func (h *Handler) respondConnect(appPubKey ids.PubKey, req protocol.ConnectRequestPayload) error {
	appPub, err := protocol.ParsePubKey(appPubKey)
	if err != nil {
		return nil
	}
	resp := protocol.ConnectResponsePayload{ID: req.ID, Result: connectAutoResult(req.Method, h.identityPub)}
	raw, err := protocol.MarshalConnectResponsePayload(resp)
	if err != nil {
		return err
	}
	out, err := h.builder.NostrConnectResponseEvent(h.identityPriv, h.identityPub, appPub, appPubKey, raw)
	if err != nil {
		return err
	}
	if h.publish == nil {
		return nil
	}
	return h.publish(out)
}

func connectAutoResult(method string, self ids.PubKey) string {
	switch method {
	case "get_public_key":
		return self.String()
	default:
		return "ack"
	}
}
