package action

import (
	"fmt"

	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/label"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/signer"
)

// RegisterSigner persists a local signer description and publishes its
// self-encrypted signer event, so the same participant's other devices
// can recover it (spec.md §4.C "Signer event": "encrypted under the
// author's own identity key").
func (a *Action) RegisterSigner(name, description, fingerprint, descriptor string, t signer.Type) (ids.EventID, error) {
	sgn, err := signer.New(name, description, fingerprint, descriptor, t)
	if err != nil {
		return ids.EventID{}, err
	}
	raw, err := protocol.MarshalSignerPayload(protocol.SignerPayload{
		Name:        sgn.Name,
		Description: sgn.Description,
		Fingerprint: sgn.Fingerprint,
		Descriptor:  sgn.Descriptor,
		Type:        int(sgn.Type),
	})
	if err != nil {
		return ids.EventID{}, errs.Walletf("encode signer payload", err)
	}
	ev, err := a.builder.SignerEvent(a.identityPriv, a.identityPub, raw)
	if err != nil {
		return ids.EventID{}, errs.Cryptof("build signer event", err)
	}
	if err := a.store.SaveSigner(ev.ID, sgn); err != nil {
		return ids.EventID{}, err
	}
	if err := a.publish(ev); err != nil {
		return ids.EventID{}, err
	}
	return ev.ID, nil
}

// DeleteSigner implements `delete_signer` (spec.md §4.F): a signer is
// self-authored, so it is authorized as a personal object.
func (a *Action) DeleteSigner(signerID ids.EventID) error {
	if err := a.authorizePersonal(signerID); err != nil {
		return err
	}
	return a.deleteAndNotify(a.identityPriv, a.identityPub, []ids.EventID{signerID}, nil)
}

// ShareSigner implements `share_signer` (spec.md §4.F): rejects a
// duplicate disclosure to the same recipient, otherwise publishes a
// shared-signer event and records the disclosure.
func (a *Action) ShareSigner(signerID ids.EventID, recipient ids.PubKey) (ids.EventID, error) {
	found, ok, err := a.store.GetSignerByID(signerID)
	if err != nil {
		return ids.EventID{}, err
	}
	if !ok {
		return ids.EventID{}, fmt.Errorf("action: signer %s not found", signerID)
	}

	already, err := a.store.HasSharedSigner(signerID, recipient)
	if err != nil {
		return ids.EventID{}, err
	}
	if already {
		return ids.EventID{}, errs.Validation("share_signer: already shared with this recipient")
	}

	recipientPub, err := protocol.ParsePubKey(recipient)
	if err != nil {
		return ids.EventID{}, errs.Cryptof("parse recipient pubkey", err)
	}
	shared := found.ToShared()
	raw, err := protocol.MarshalSharedSignerPayload(protocol.SharedSignerPayload{
		Fingerprint: shared.Fingerprint,
		Descriptor:  shared.Descriptor,
	})
	if err != nil {
		return ids.EventID{}, errs.Walletf("encode shared-signer payload", err)
	}
	ev, err := a.builder.SharedSignerEvent(a.identityPriv, a.identityPub, recipientPub, recipient, signerID, raw)
	if err != nil {
		return ids.EventID{}, errs.Cryptof("build shared-signer event", err)
	}
	if err := a.publish(ev); err != nil {
		return ids.EventID{}, err
	}
	if err := a.store.RecordSharedSigner(signerID, recipient, ev.ID); err != nil {
		return ids.EventID{}, err
	}
	return ev.ID, nil
}

// Label implements `label` (spec.md §4.F): computes the deterministic
// identifier for data, encrypts the label under the vault's shared key,
// and publishes it as a replaceable-by-identifier event.
func (a *Action) Label(vaultID ids.VaultID, data label.Data, text string) (string, error) {
	key, sharedPriv, sharedPub, err := a.sharedSigning(vaultID)
	if err != nil {
		return "", err
	}
	v, ok, err := a.store.GetVault(vaultID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("action: vault %s not found", vaultID)
	}

	identifier := label.IdentifierForKey(key, data)
	raw, err := protocol.MarshalLabelPayload(protocol.LabelPayload{Kind: int(data.Kind), Value: data.Value, Text: text})
	if err != nil {
		return "", errs.Walletf("encode label payload", err)
	}
	ev, err := a.builder.LabelEvent(sharedPriv, sharedPub, key, vaultID, identifier, v.Participants, raw)
	if err != nil {
		return "", errs.Cryptof("build label event", err)
	}
	if err := a.store.SaveLabel(vaultID, identifier, &label.Label{VaultID: vaultID, Data: data, Text: text}); err != nil {
		return "", err
	}
	if err := a.publish(ev); err != nil {
		return "", err
	}
	return identifier, nil
}
