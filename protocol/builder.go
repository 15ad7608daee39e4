package protocol

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/ids"
)

// Clock abstracts time.Now for deterministic tests, mirroring the pattern
// the teacher's sync loops use for ticker injection.
type Clock func() time.Time

// Builder constructs every outbound event kind described in spec.md §4.C.
// It holds no state beyond a clock, so a single Builder is safely shared
// across vaults and callers.
type Builder struct {
	Now Clock
}

// NewBuilder returns a Builder using wall-clock time.
func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// SharedKeyEvent builds the per-participant shared-key event: the shared
// key's secret, encrypted to (participant, author), tagged with the vault
// id and the recipient pubkey, signed by the author's identity.
func (b *Builder) SharedKeyEvent(author *btcec.PrivateKey, authorPub ids.PubKey, recipient *btcec.PublicKey, recipientPub ids.PubKey, vaultID ids.VaultID, key cryptutil.SharedKey) (*Event, error) {
	ciphertext, err := cryptutil.EncryptAsymmetric(author, recipient, "smartvaults/shared-key", key[:])
	if err != nil {
		return nil, err
	}
	ev := &Event{
		PubKey:    authorPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindSharedKey,
		Content:   string(ciphertext),
		Tags: []Tag{
			EventTag(vaultID),
			PubKeyTag(recipientPub),
		},
	}
	if err := ev.Sign(author); err != nil {
		return nil, err
	}
	return ev, nil
}

// VaultEvent builds the vault-creation event: the serialized vault,
// encrypted under the shared key, tagged with every participant, signed by
// the shared key (which doubles as the vault's "author" identity).
func (b *Builder) VaultEvent(sharedKeyPriv *btcec.PrivateKey, sharedKeyPub ids.PubKey, key cryptutil.SharedKey, participants []ids.PubKey, vaultJSON []byte) (*Event, error) {
	ciphertext, err := cryptutil.EncryptSymmetric(key, vaultJSON)
	if err != nil {
		return nil, err
	}
	tags := make([]Tag, 0, len(participants))
	for _, p := range participants {
		tags = append(tags, PubKeyTag(p))
	}
	ev := &Event{
		PubKey:    sharedKeyPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindVault,
		Content:   string(ciphertext),
		Tags:      tags,
	}
	if err := ev.Sign(sharedKeyPriv); err != nil {
		return nil, err
	}
	return ev, nil
}

// ProposalEvent builds a proposal event under the vault's shared key.
func (b *Builder) ProposalEvent(sharedKeyPriv *btcec.PrivateKey, sharedKeyPub ids.PubKey, key cryptutil.SharedKey, vaultID ids.VaultID, participants []ids.PubKey, proposalJSON []byte) (*Event, error) {
	ciphertext, err := cryptutil.EncryptSymmetric(key, proposalJSON)
	if err != nil {
		return nil, err
	}
	tags := make([]Tag, 0, len(participants)+1)
	for _, p := range participants {
		tags = append(tags, PubKeyTag(p))
	}
	tags = append(tags, EventTag(vaultID))
	ev := &Event{
		PubKey:    sharedKeyPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindProposal,
		Content:   string(ciphertext),
		Tags:      tags,
	}
	if err := ev.Sign(sharedKeyPriv); err != nil {
		return nil, err
	}
	return ev, nil
}

// ApprovalTTL is the default lifetime of an approval event
// (spec.md §4.F: `APPROVED_PROPOSAL_EXPIRATION`).
const ApprovalTTL = 7 * 24 * time.Hour

// ApprovalEvent builds an approval event, signed by the approver's own
// identity (not the shared key) — this is what lets the handler key
// approvals per (proposal, author) (spec.md §4.C).
func (b *Builder) ApprovalEvent(approver *btcec.PrivateKey, approverPub ids.PubKey, key cryptutil.SharedKey, vaultID, proposalID ids.EventID, participants []ids.PubKey, approvalJSON []byte, ttl time.Duration) (*Event, error) {
	ciphertext, err := cryptutil.EncryptSymmetric(key, approvalJSON)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = ApprovalTTL
	}
	tags := make([]Tag, 0, len(participants)+3)
	for _, p := range participants {
		tags = append(tags, PubKeyTag(p))
	}
	tags = append(tags, EventTag(proposalID), EventTag(vaultID), ExpirationTag(b.now().Add(ttl)))
	ev := &Event{
		PubKey:    approverPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindApprovedProposal,
		Content:   string(ciphertext),
		Tags:      tags,
	}
	if err := ev.Sign(approver); err != nil {
		return nil, err
	}
	return ev, nil
}

// CompletionEvent builds a completion event, signed by the shared key.
func (b *Builder) CompletionEvent(sharedKeyPriv *btcec.PrivateKey, sharedKeyPub ids.PubKey, key cryptutil.SharedKey, vaultID, proposalID ids.EventID, participants []ids.PubKey, completionJSON []byte) (*Event, error) {
	ciphertext, err := cryptutil.EncryptSymmetric(key, completionJSON)
	if err != nil {
		return nil, err
	}
	tags := make([]Tag, 0, len(participants)+2)
	for _, p := range participants {
		tags = append(tags, PubKeyTag(p))
	}
	tags = append(tags, EventTag(proposalID), EventTag(vaultID))
	ev := &Event{
		PubKey:    sharedKeyPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindCompletedProposal,
		Content:   string(ciphertext),
		Tags:      tags,
	}
	if err := ev.Sign(sharedKeyPriv); err != nil {
		return nil, err
	}
	return ev, nil
}

// LabelEvent builds a replaceable-by-identifier label event.
func (b *Builder) LabelEvent(sharedKeyPriv *btcec.PrivateKey, sharedKeyPub ids.PubKey, key cryptutil.SharedKey, vaultID ids.VaultID, identifier string, participants []ids.PubKey, labelJSON []byte) (*Event, error) {
	ciphertext, err := cryptutil.EncryptSymmetric(key, labelJSON)
	if err != nil {
		return nil, err
	}
	tags := make([]Tag, 0, len(participants)+2)
	tags = append(tags, IdentifierTag(identifier), EventTag(vaultID))
	for _, p := range participants {
		tags = append(tags, PubKeyTag(p))
	}
	ev := &Event{
		PubKey:    sharedKeyPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindLabel,
		Content:   string(ciphertext),
		Tags:      tags,
	}
	if err := ev.Sign(sharedKeyPriv); err != nil {
		return nil, err
	}
	return ev, nil
}

// SignerEvent builds a self-encrypted signer event: content is encrypted
// under the author's own identity key (an ECDH-with-self derivation), so
// only this participant can ever decrypt their own signer list.
func (b *Builder) SignerEvent(author *btcec.PrivateKey, authorPub ids.PubKey, signerJSON []byte) (*Event, error) {
	ciphertext, err := cryptutil.EncryptAsymmetric(author, author.PubKey(), "smartvaults/signer-self", signerJSON)
	if err != nil {
		return nil, err
	}
	ev := &Event{
		PubKey:    authorPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindSigner,
		Content:   string(ciphertext),
	}
	if err := ev.Sign(author); err != nil {
		return nil, err
	}
	return ev, nil
}

// SharedSignerEvent builds a shared-signer event addressed to recipient.
func (b *Builder) SharedSignerEvent(author *btcec.PrivateKey, authorPub ids.PubKey, recipient *btcec.PublicKey, recipientPub ids.PubKey, signerID ids.EventID, descriptorJSON []byte) (*Event, error) {
	ciphertext, err := cryptutil.EncryptAsymmetric(author, recipient, "smartvaults/shared-signer", descriptorJSON)
	if err != nil {
		return nil, err
	}
	ev := &Event{
		PubKey:    authorPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindSharedSigner,
		Content:   string(ciphertext),
		Tags: []Tag{
			EventTag(signerID),
			PubKeyTag(recipientPub),
		},
	}
	if err := ev.Sign(author); err != nil {
		return nil, err
	}
	return ev, nil
}

// NostrConnectResponseEvent builds the signed response to an inbound
// nostr-connect request, encrypted back to the requesting app (spec.md
// §4.F).
func (b *Builder) NostrConnectResponseEvent(identity *btcec.PrivateKey, identityPub ids.PubKey, appPub *btcec.PublicKey, appPubKey ids.PubKey, responseJSON []byte) (*Event, error) {
	ciphertext, err := cryptutil.EncryptAsymmetric(identity, appPub, "smartvaults/nostr-connect", responseJSON)
	if err != nil {
		return nil, err
	}
	ev := &Event{
		PubKey:    identityPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindNostrConnect,
		Content:   string(ciphertext),
		Tags:      []Tag{PubKeyTag(appPubKey)},
	}
	if err := ev.Sign(identity); err != nil {
		return nil, err
	}
	return ev, nil
}

// DirectMessageEvent builds a standard encrypted direct message (spec.md
// §4.F `spend`: "send a direct-message notification to every other
// participant"), encrypted the same pairwise ECDH+HKDF way as a
// shared-key envelope but under its own info string so the two never
// collide.
func (b *Builder) DirectMessageEvent(author *btcec.PrivateKey, authorPub ids.PubKey, recipient *btcec.PublicKey, recipientPub ids.PubKey, plaintext string) (*Event, error) {
	ciphertext, err := cryptutil.EncryptAsymmetric(author, recipient, "smartvaults/direct-message", []byte(plaintext))
	if err != nil {
		return nil, err
	}
	ev := &Event{
		PubKey:    authorPub,
		CreatedAt: b.now().Unix(),
		Kind:      KindDirectMessage,
		Content:   string(ciphertext),
		Tags:      []Tag{PubKeyTag(recipientPub)},
	}
	if err := ev.Sign(author); err != nil {
		return nil, err
	}
	return ev, nil
}

// DeletionSigner identifies who must sign a deletion event: either the
// vault's shared key (for vault-scoped objects) or the author's own
// identity (for personal objects), per spec.md §4.C/§4.F.
type DeletionSigner struct {
	Priv   *btcec.PrivateKey
	PubKey ids.PubKey
}

// DeletionEvent builds a deletion event listing every affected event id and
// every participant to notify.
func (b *Builder) DeletionEvent(signer DeletionSigner, affected []ids.EventID, notify []ids.PubKey) (*Event, error) {
	tags := make([]Tag, 0, len(affected)+len(notify))
	for _, id := range affected {
		tags = append(tags, EventTag(id))
	}
	for _, p := range notify {
		tags = append(tags, PubKeyTag(p))
	}
	ev := &Event{
		PubKey:    signer.PubKey,
		CreatedAt: b.now().Unix(),
		Kind:      KindDeletion,
		Tags:      tags,
	}
	if err := ev.Sign(signer.Priv); err != nil {
		return nil, err
	}
	return ev, nil
}
