package action

import (
	"fmt"
	"time"

	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/store"
)

// AcceptConnectURI implements the nostr-connect session acceptance half of
// spec.md §4.F: "Accept a connect URI identifying a remote app's pubkey and
// relay; subscribe". The Sync Engine already subscribes every relay to
// events tagged with this participant's pubkey across every protocol kind,
// KindNostrConnect included, so accepting a session only needs to open it
// locally: once open, Handler.handleNostrConnect starts admitting requests
// from appPubKey.
//
// preauthorizedUntil grants the session standing authorization up to that
// time; the zero Time means every request needs an explicit approve/reject.
func (a *Action) AcceptConnectURI(appPubKey ids.PubKey, relayURL string, preauthorizedUntil time.Time) error {
	if _, err := protocol.ParsePubKey(appPubKey); err != nil {
		return err
	}
	return a.store.SaveConnectSession(appPubKey, relayURL, preauthorizedUntil)
}

// GetConnectRequests implements `get_nostr_connect_requests` (spec.md
// §4.F).
func (a *Action) GetConnectRequests(approved bool) ([]store.ConnectRequestRow, error) {
	return a.store.GetConnectRequests(approved)
}

// respondToConnectRequest builds and publishes the response for a pending
// request, the same shape Handler.respondConnect uses for auto-approved
// requests.
func (a *Action) respondToConnectRequest(row store.ConnectRequestRow) error {
	appPubKey, err := ids.PubKeyFromHex(row.AppPubKey)
	if err != nil {
		return err
	}
	appPub, err := protocol.ParsePubKey(appPubKey)
	if err != nil {
		return err
	}
	raw, err := protocol.MarshalConnectResponsePayload(protocol.ConnectResponsePayload{
		ID:     row.ID,
		Result: connectResult(row.Method, a.identityPub),
	})
	if err != nil {
		return err
	}
	ev, err := a.builder.NostrConnectResponseEvent(a.identityPriv, a.identityPub, appPub, appPubKey, raw)
	if err != nil {
		return err
	}
	return a.publish(ev)
}

// connectResult mirrors handler.connectAutoResult: GetPublicKey returns this
// participant's identity, everything else is a bare acknowledgement.
func connectResult(method string, self ids.PubKey) string {
	switch method {
	case "get_public_key":
		return self.String()
	default:
		return "ack"
	}
}

// ApproveConnectRequest implements `approve_nostr_connect_request` (spec.md
// §4.F): emits the response event and marks the request approved.
func (a *Action) ApproveConnectRequest(requestID ids.EventID) error {
	row, ok, err := a.store.GetConnectRequestByID(requestID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: connect request %s not found", requestID)
	}
	if err := a.respondToConnectRequest(row); err != nil {
		return err
	}
	return a.store.MarkConnectRequestApproved(requestID)
}

// RejectConnectRequest implements `reject_nostr_connect_request` (spec.md
// §4.F): responds with an error result and drops the pending request.
func (a *Action) RejectConnectRequest(requestID ids.EventID) error {
	row, ok, err := a.store.GetConnectRequestByID(requestID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: connect request %s not found", requestID)
	}
	appPubKey, err := ids.PubKeyFromHex(row.AppPubKey)
	if err != nil {
		return err
	}
	appPub, err := protocol.ParsePubKey(appPubKey)
	if err != nil {
		return err
	}
	raw, err := protocol.MarshalConnectResponsePayload(protocol.ConnectResponsePayload{
		ID:    row.ID,
		Error: "rejected",
	})
	if err != nil {
		return err
	}
	ev, err := a.builder.NostrConnectResponseEvent(a.identityPriv, a.identityPub, appPub, appPubKey, raw)
	if err != nil {
		return err
	}
	if err := a.publish(ev); err != nil {
		return err
	}
	return a.store.DeleteConnectRequest(requestID)
}
