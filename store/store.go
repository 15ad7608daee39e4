// Package store implements the Local Store (spec.md §4.A): a transactional,
// typed view over protocol state backed by an embedded SQL-family database.
package store

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smartvaults/svengine/config"
	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/label"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/proposal"
	"github.com/smartvaults/svengine/signer"
	"github.com/smartvaults/svengine/vault"
)

// blockHeight caches the chain tip height, grounded on
// `coinstr-sdk/src/db/store/mod.rs`'s `BlockHeight` helper: an atomic
// height plus a last-sync instant gating how often the Sync Engine needs to
// query the Chain Client again (spec.md §4.E `BLOCK_HEIGHT_SYNC_INTERVAL`).
type blockHeight struct {
	height   atomic.Uint32
	mu       sync.Mutex
	lastSync time.Time
}

func (b *blockHeight) Height() uint32 { return b.height.Load() }

func (b *blockHeight) Set(h uint32) { b.height.Store(h) }

func (b *blockHeight) IsSynced(interval time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Since(b.lastSync) < interval
}

func (b *blockHeight) JustSynced() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSync = time.Now()
}

// Store is the Local Store: a single *gorm.DB handle plus the store-wide
// at-rest encryption key derived from the participant's identity.
type Store struct {
	db          *gorm.DB
	identityKey cryptutil.SharedKey

	BlockHeight blockHeight
}

var allModels = []interface{}{
	&EventRow{},
	&VaultRow{},
	&ParticipantRow{},
	&SharedKeyRow{},
	&ProposalRow{},
	&ApprovalRow{},
	&CompletionRow{},
	&SignerRow{},
	&SharedSignerRow{},
	&MySharedSignerRow{},
	&LabelRow{},
	&NotificationRow{},
	&ContactRow{},
	&PendingEventRow{},
	&RelaySyncRow{},
	&MetadataSyncRow{},
	&ConnectSessionRow{},
	&ConnectRequestRow{},
}

// Open opens (creating if absent) the sqlite-backed local store at dbPath
// and runs migrations. identityKey is the at-rest encryption key for the
// sealed columns listed in models.go.
func Open(dbPath string, identityKey cryptutil.SharedKey) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errs.Walletf("open local store", err)
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		return nil, errs.Walletf("migrate local store", err)
	}
	return &Store{db: db, identityKey: identityKey}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) seal(plaintext []byte) ([]byte, error) {
	ct, err := cryptutil.EncryptSymmetric(s.identityKey, plaintext)
	if err != nil {
		return nil, errs.Cryptof("seal store row", err)
	}
	return ct, nil
}

func (s *Store) unseal(ciphertext []byte) ([]byte, error) {
	pt, err := cryptutil.DecryptSymmetric(s.identityKey, ciphertext)
	if err != nil {
		return nil, errs.Cryptof("unseal store row", err)
	}
	return pt, nil
}

func eventIDFromString(s string) (ids.EventID, error) {
	id, err := ids.EventIDFromHex(s)
	if err != nil {
		return id, errs.Walletf("corrupt event id in store", err)
	}
	return id, nil
}

func pubKeyFromString(s string) (ids.PubKey, error) {
	pk, err := ids.PubKeyFromHex(s)
	if err != nil {
		return pk, errs.Walletf("corrupt pubkey in store", err)
	}
	return pk, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixPeriod(from, to int64) proposal.Period {
	return proposal.Period{From: unixTime(from), To: unixTime(to)}
}

func tagsToJSON(tags []protocol.Tag) string {
	raw, _ := json.Marshal(tags)
	return string(raw)
}

func tagsFromJSON(s string) []protocol.Tag {
	var tags []protocol.Tag
	_ = json.Unmarshal([]byte(s), &tags)
	return tags
}

// --- raw events / tombstones (spec.md §4.A) ---------------------------

// SaveEvent persists a raw signed event idempotently. Re-saving an already
// tombstoned id is a no-op: "Deletion never erases; it marks, so
// late-arriving duplicates are ignored."
func (s *Store) SaveEvent(ev *protocol.Event) error {
	deleted, err := s.EventWasDeleted(ev.ID)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}
	row := EventRow{
		ID:        ev.ID.String(),
		PubKey:    ev.PubKey.String(),
		CreatedAt: ev.CreatedAt,
		Kind:      int(ev.Kind),
		TagsJSON:  tagsToJSON(ev.Tags),
		Content:   ev.Content,
		Sig:       hexSig(ev.Sig),
	}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save event", err)
	}
	return nil
}

// EventWasDeleted reports whether id carries a tombstone.
func (s *Store) EventWasDeleted(id ids.EventID) (bool, error) {
	var row EventRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, errs.Walletf("lookup event tombstone", err)
	}
	return row.Deleted, nil
}

// SetEventAsDeleted marks id's tombstone bit, creating a bare tombstone row
// if the event itself was never locally stored.
func (s *Store) SetEventAsDeleted(id ids.EventID) error {
	res := s.db.Model(&EventRow{}).Where("id = ?", id.String()).Update("deleted", true)
	if res.Error != nil {
		return errs.Walletf("set event deleted", res.Error)
	}
	if res.RowsAffected == 0 {
		row := EventRow{ID: id.String(), Deleted: true}
		if err := s.db.Create(&row).Error; err != nil {
			return errs.Walletf("create tombstone", err)
		}
	}
	return nil
}

// ListEventsForRebroadcast returns every non-tombstoned stored event,
// reconstructed into wire form, for the Sync Engine's rebroadcaster task
// (spec.md §4.E: "republish all locally stored events to all connected
// relays").
func (s *Store) ListEventsForRebroadcast() ([]*protocol.Event, error) {
	var rows []EventRow
	if err := s.db.Where("deleted = ?", false).Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list events for rebroadcast", err)
	}
	out := make([]*protocol.Event, 0, len(rows))
	for _, r := range rows {
		id, err := eventIDFromString(r.ID)
		if err != nil {
			return nil, err
		}
		pk, err := pubKeyFromString(r.PubKey)
		if err != nil {
			return nil, err
		}
		sig, err := sigFromHex(r.Sig)
		if err != nil {
			return nil, err
		}
		out = append(out, &protocol.Event{
			ID:        id,
			PubKey:    pk,
			CreatedAt: r.CreatedAt,
			Kind:      protocol.Kind(r.Kind),
			Tags:      tagsFromJSON(r.TagsJSON),
			Content:   r.Content,
			Sig:       sig,
		})
	}
	return out, nil
}

func sigFromHex(s string) ([64]byte, error) {
	var sig [64]byte
	if len(s) != 128 {
		return sig, errs.Wallet("corrupt signature hex length in store")
	}
	for i := 0; i < 64; i++ {
		hi, ok1 := hexNibble(s[i*2])
		lo, ok2 := hexNibble(s[i*2+1])
		if !ok1 || !ok2 {
			return sig, errs.Wallet("corrupt signature hex digit in store")
		}
		sig[i] = hi<<4 | lo
	}
	return sig, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

func hexSig(sig [64]byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 128)
	for i, b := range sig {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

// GetEventAuthor returns the stored author of a raw event, used by the
// Event Handler to check a deletion event's authorization (spec.md §8
// Deletion authorization).
func (s *Store) GetEventAuthor(id ids.EventID) (ids.PubKey, bool, error) {
	var row EventRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return ids.PubKey{}, false, nil
	}
	if err != nil {
		return ids.PubKey{}, false, errs.Walletf("get event author", err)
	}
	pk, err := pubKeyFromString(row.PubKey)
	if err != nil {
		return ids.PubKey{}, false, err
	}
	return pk, true, nil
}

// --- vaults -------------------------------------------------------------

// SaveVault persists a vault and its participant list idempotently. Loading
// the corresponding wallet into the Wallet Manager (spec.md §4.A) is the
// caller's job — the handler orchestrates both calls so this package
// doesn't import walletmgr.
func (s *Store) SaveVault(id ids.VaultID, v *vault.Vault, participants []ids.PubKey) error {
	sealedDescriptor, err := s.seal([]byte(v.Descriptor))
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		row := VaultRow{
			ID:          id.String(),
			Name:        v.Name,
			Description: v.Description,
			Descriptor:  sealedDescriptor,
			Network:     string(v.Network),
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		for _, p := range participants {
			prow := ParticipantRow{VaultID: id.String(), PubKey: p.String()}
			if err := tx.Where(prow).FirstOrCreate(&prow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetVault loads a vault and its participants.
func (s *Store) GetVault(id ids.VaultID) (*vault.Vault, bool, error) {
	var row VaultRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Walletf("get vault", err)
	}
	descriptor, err := s.unseal(row.Descriptor)
	if err != nil {
		return nil, false, err
	}
	var prows []ParticipantRow
	if err := s.db.Where("vault_id = ?", id.String()).Find(&prows).Error; err != nil {
		return nil, false, errs.Walletf("get vault participants", err)
	}
	participants := make([]ids.PubKey, 0, len(prows))
	for _, pr := range prows {
		pk, err := pubKeyFromString(pr.PubKey)
		if err != nil {
			return nil, false, err
		}
		participants = append(participants, pk)
	}
	return &vault.Vault{
		ID:           id,
		Name:         row.Name,
		Description:  row.Description,
		Descriptor:   string(descriptor),
		Network:      config.Network(row.Network),
		Participants: participants,
	}, true, nil
}

// VaultExists reports whether a vault row for id is present.
func (s *Store) VaultExists(id ids.VaultID) (bool, error) {
	var count int64
	if err := s.db.Model(&VaultRow{}).Where("id = ?", id.String()).Count(&count).Error; err != nil {
		return false, errs.Walletf("check vault existence", err)
	}
	return count > 0, nil
}

// ListVaultIDs returns every locally known vault id, used by the Sync
// Engine's vault chain syncer (spec.md §4.E).
func (s *Store) ListVaultIDs() ([]ids.VaultID, error) {
	var rows []VaultRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list vaults", err)
	}
	out := make([]ids.VaultID, 0, len(rows))
	for _, r := range rows {
		id, err := eventIDFromString(r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// DeleteVault cascades to every row owned by this vault and tombstones
// every affected event id (spec.md §4.A `delete_vault`).
func (s *Store) DeleteVault(id ids.VaultID) error {
	vid := id.String()
	return s.db.Transaction(func(tx *gorm.DB) error {
		var proposalRows []ProposalRow
		if err := tx.Where("vault_id = ?", vid).Find(&proposalRows).Error; err != nil {
			return err
		}
		for _, p := range proposalRows {
			if err := deleteProposalTx(tx, p.ID); err != nil {
				return err
			}
		}
		if err := tx.Where("vault_id = ?", vid).Delete(&SharedKeyRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vault_id = ?", vid).Delete(&ParticipantRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vault_id = ?", vid).Delete(&LabelRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", vid).Delete(&NotificationRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", vid).Delete(&VaultRow{}).Error; err != nil {
			return err
		}
		return tombstoneTx(tx, vid)
	})
}

func tombstoneTx(tx *gorm.DB, id string) error {
	res := tx.Model(&EventRow{}).Where("id = ?", id).Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Create(&EventRow{ID: id, Deleted: true}).Error
	}
	return nil
}

// --- shared keys ----------------------------------------------------------

// SaveSharedKey persists the symmetric key bound to vaultID, idempotently.
func (s *Store) SaveSharedKey(vaultID ids.VaultID, key cryptutil.SharedKey) error {
	ct, err := s.seal(key[:])
	if err != nil {
		return err
	}
	row := SharedKeyRow{VaultID: vaultID.String(), Ciphertext: ct}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save shared key", err)
	}
	return nil
}

// SharedKeyExistsForVault reports whether vaultID's shared key has been
// decrypted and stored.
func (s *Store) SharedKeyExistsForVault(vaultID ids.VaultID) (bool, error) {
	var count int64
	if err := s.db.Model(&SharedKeyRow{}).Where("vault_id = ?", vaultID.String()).Count(&count).Error; err != nil {
		return false, errs.Walletf("check shared key existence", err)
	}
	return count > 0, nil
}

// GetSharedKey returns vaultID's shared key, if recorded.
func (s *Store) GetSharedKey(vaultID ids.VaultID) (cryptutil.SharedKey, bool, error) {
	var key cryptutil.SharedKey
	var row SharedKeyRow
	err := s.db.Where("vault_id = ?", vaultID.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return key, false, nil
	}
	if err != nil {
		return key, false, errs.Walletf("get shared key", err)
	}
	pt, err := s.unseal(row.Ciphertext)
	if err != nil {
		return key, false, err
	}
	if len(pt) != len(key) {
		return key, false, errs.Wallet("corrupt shared key length")
	}
	copy(key[:], pt)
	return key, true, nil
}

// --- proposals / approvals / completions ----------------------------------

// SaveProposal persists a proposal idempotently.
func (s *Store) SaveProposal(p *proposal.Proposal) error {
	plaintext, err := encodeProposal(p)
	if err != nil {
		return errs.Walletf("encode proposal", err)
	}
	ct, err := s.seal(plaintext)
	if err != nil {
		return err
	}
	row := ProposalRow{ID: p.ID.String(), VaultID: p.VaultID.String(), Type: int(p.Type), Ciphertext: ct}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save proposal", err)
	}
	return nil
}

// ProposalExists reports whether a proposal row for id is present.
func (s *Store) ProposalExists(id ids.EventID) (bool, error) {
	var count int64
	if err := s.db.Model(&ProposalRow{}).Where("id = ?", id.String()).Count(&count).Error; err != nil {
		return false, errs.Walletf("check proposal existence", err)
	}
	return count > 0, nil
}

// GetProposal loads a proposal by id.
func (s *Store) GetProposal(id ids.EventID) (*proposal.Proposal, bool, error) {
	var row ProposalRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Walletf("get proposal", err)
	}
	pt, err := s.unseal(row.Ciphertext)
	if err != nil {
		return nil, false, err
	}
	p, err := decodeProposal(row.ID, row.VaultID, row.Type, pt)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// DeleteProposal cascades to its approvals and notification (spec.md §4.A
// `delete_proposal`).
func (s *Store) DeleteProposal(id ids.EventID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return deleteProposalTx(tx, id.String())
	})
}

func deleteProposalTx(tx *gorm.DB, id string) error {
	if err := tx.Where("proposal_id = ?", id).Delete(&ApprovalRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("event_id = ?", id).Delete(&NotificationRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("id = ?", id).Delete(&ProposalRow{}).Error; err != nil {
		return err
	}
	return tombstoneTx(tx, id)
}

// SaveApproval persists an approval keyed by (proposal id, author),
// last-timestamp-wins (spec.md §3 Approval invariant, §4.D Approval
// effect): "if stored timestamp exists and the new timestamp is later,
// overwrite".
func (s *Store) SaveApproval(a *proposal.Approval) error {
	var existing ApprovalRow
	err := s.db.Where("proposal_id = ? AND author = ?", a.ProposalID.String(), a.Author.String()).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return errs.Walletf("lookup existing approval", err)
	}
	if err == nil && existing.Timestamp >= a.Timestamp.Unix() {
		return nil
	}

	plaintext, err := encodeApproval(a)
	if err != nil {
		return errs.Walletf("encode approval", err)
	}
	ct, err := s.seal(plaintext)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if existing.ID != "" && existing.ID != a.ID.String() {
			if err := tx.Where("id = ?", existing.ID).Delete(&ApprovalRow{}).Error; err != nil {
				return err
			}
		}
		row := ApprovalRow{
			ID:         a.ID.String(),
			ProposalID: a.ProposalID.String(),
			VaultID:    a.VaultID.String(),
			Author:     a.Author.String(),
			Timestamp:  a.Timestamp.Unix(),
			Expiration: a.Expiration.Unix(),
			Ciphertext: ct,
		}
		return tx.Save(&row).Error
	})
}

// GetApprovals lists every unexpired approval for a proposal.
func (s *Store) GetApprovals(proposalID ids.EventID) ([]*proposal.Approval, error) {
	var rows []ApprovalRow
	if err := s.db.Where("proposal_id = ?", proposalID.String()).Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list approvals", err)
	}
	now := time.Now()
	out := make([]*proposal.Approval, 0, len(rows))
	for _, row := range rows {
		if !unixTime(row.Expiration).IsZero() && unixTime(row.Expiration).Before(now) {
			continue
		}
		pt, err := s.unseal(row.Ciphertext)
		if err != nil {
			return nil, err
		}
		a, err := decodeApproval(row, pt)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DeleteApproval removes a single approval by id, for author-initiated
// deletes (spec.md §4.C Deletion event).
func (s *Store) DeleteApproval(id ids.EventID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id.String()).Delete(&ApprovalRow{}).Error; err != nil {
			return err
		}
		return tombstoneTx(tx, id.String())
	})
}

// SaveCompletion persists a completion and, in the same transaction,
// deletes its proposal (spec.md §4.D Completion effect: "delete proposal;
// persist completion"), so a crash between the two never leaves both a
// live proposal and its terminal record.
func (s *Store) SaveCompletion(c *proposal.Completion) error {
	plaintext, err := encodeCompletion(c)
	if err != nil {
		return errs.Walletf("encode completion", err)
	}
	ct, err := s.seal(plaintext)
	if err != nil {
		return err
	}
	row := CompletionRow{
		ID:         c.ID.String(),
		ProposalID: c.ProposalID.String(),
		VaultID:    c.VaultID.String(),
		Type:       int(c.Type),
		Ciphertext: ct,
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteProposalTx(tx, c.ProposalID.String()); err != nil {
			return err
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		return nil
	})
}

// DeleteCompletion removes a completion row by its own id (spec.md §4.F
// `delete_completion`).
func (s *Store) DeleteCompletion(id ids.EventID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id.String()).Delete(&CompletionRow{}).Error; err != nil {
			return err
		}
		return tombstoneTx(tx, id.String())
	})
}

// GetCompletion loads a completion by its proposal id.
func (s *Store) GetCompletion(proposalID ids.EventID) (*proposal.Completion, bool, error) {
	var row CompletionRow
	err := s.db.Where("proposal_id = ?", proposalID.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Walletf("get completion", err)
	}
	pt, err := s.unseal(row.Ciphertext)
	if err != nil {
		return nil, false, err
	}
	c, err := decodeCompletion(row.ID, row.ProposalID, row.VaultID, row.Type, pt)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// GetCompletionByID loads a completion by its own id, for callers that only
// have the completion event id on hand (spec.md §4.F `delete_completion`).
func (s *Store) GetCompletionByID(id ids.EventID) (*proposal.Completion, bool, error) {
	var row CompletionRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Walletf("get completion by id", err)
	}
	pt, err := s.unseal(row.Ciphertext)
	if err != nil {
		return nil, false, err
	}
	c, err := decodeCompletion(row.ID, row.ProposalID, row.VaultID, row.Type, pt)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// --- signers / shared signers ---------------------------------------------

// SaveSigner persists a self-authored signer. Invariant: Descriptor is
// unique across this participant's own signers (spec.md §3) — violating it
// surfaces as a Validation error rather than a raw SQL constraint failure.
func (s *Store) SaveSigner(id ids.EventID, sgn *signer.Signer) error {
	var existing SignerRow
	err := s.db.Where("descriptor = ?", sgn.Descriptor).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return errs.Walletf("lookup existing signer", err)
	}
	if err == nil && existing.ID != id.String() {
		return errs.Validation("signer: descriptor already registered under a different signer")
	}
	row := SignerRow{
		ID:          id.String(),
		Fingerprint: sgn.Fingerprint,
		Descriptor:  sgn.Descriptor,
		Name:        sgn.Name,
		Description: sgn.Description,
		Type:        int(sgn.Type),
	}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save signer", err)
	}
	return nil
}

// ListSigners returns every locally registered signer.
func (s *Store) ListSigners() ([]*signer.Signer, error) {
	var rows []SignerRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list signers", err)
	}
	out := make([]*signer.Signer, 0, len(rows))
	for _, r := range rows {
		out = append(out, &signer.Signer{
			Name:        r.Name,
			Description: r.Description,
			Fingerprint: r.Fingerprint,
			Descriptor:  r.Descriptor,
			Type:        signer.Type(r.Type),
		})
	}
	return out, nil
}

// GetSignerByID loads a single self-authored signer by its event id, for
// `share_signer` (spec.md §4.F).
func (s *Store) GetSignerByID(id ids.EventID) (*signer.Signer, bool, error) {
	var row SignerRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Walletf("get signer by id", err)
	}
	return &signer.Signer{
		Name:        row.Name,
		Description: row.Description,
		Fingerprint: row.Fingerprint,
		Descriptor:  row.Descriptor,
		Type:        signer.Type(row.Type),
	}, true, nil
}

// SaveSharedSigner persists a signer descriptor disclosed by author.
func (s *Store) SaveSharedSigner(id ids.EventID, author ids.PubKey, shared *signer.SharedSigner) error {
	row := SharedSignerRow{
		ID:          id.String(),
		OwnerPubKey: author.String(),
		Fingerprint: shared.Fingerprint,
		Descriptor:  shared.Descriptor,
	}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save shared signer", err)
	}
	return nil
}

// ListSharedSigners returns every shared signer disclosed by author.
func (s *Store) ListSharedSigners(author ids.PubKey) ([]*signer.SharedSigner, error) {
	var rows []SharedSignerRow
	if err := s.db.Where("owner_pub_key = ?", author.String()).Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list shared signers", err)
	}
	out := make([]*signer.SharedSigner, 0, len(rows))
	for _, r := range rows {
		out = append(out, &signer.SharedSigner{Fingerprint: r.Fingerprint, Descriptor: r.Descriptor})
	}
	return out, nil
}

// HasSharedSigner reports whether signerID has already been shared with
// recipient, so ShareSigner can reject a duplicate disclosure (spec.md
// §4.F `share_signer`).
func (s *Store) HasSharedSigner(signerID ids.EventID, recipient ids.PubKey) (bool, error) {
	var row MySharedSignerRow
	err := s.db.Where("signer_id = ? AND recipient = ?", signerID.String(), recipient.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, errs.Walletf("lookup shared signer", err)
	}
	return true, nil
}

// RecordSharedSigner remembers that signerID was disclosed to recipient via
// eventID, so a later ShareSigner call can be rejected as a duplicate.
func (s *Store) RecordSharedSigner(signerID ids.EventID, recipient ids.PubKey, eventID ids.EventID) error {
	row := MySharedSignerRow{
		SignerID:  signerID.String(),
		Recipient: recipient.String(),
		EventID:   eventID.String(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return errs.Walletf("record shared signer", err)
	}
	return nil
}

// --- labels -----------------------------------------------------------

type labelDTO struct {
	Kind  int
	Value string
	Text  string
}

// SaveLabel persists a label keyed by (vaultID, identifier); the latest
// write for a given identifier wins (spec.md §4.C: "the latest wins per
// (shared key, tagged entity)").
func (s *Store) SaveLabel(vaultID ids.VaultID, identifier string, l *label.Label) error {
	plaintext, err := json.Marshal(labelDTO{Kind: int(l.Data.Kind), Value: l.Data.Value, Text: l.Text})
	if err != nil {
		return errs.Walletf("encode label", err)
	}
	ct, err := s.seal(plaintext)
	if err != nil {
		return err
	}
	row := LabelRow{VaultID: vaultID.String(), Identifier: identifier, Ciphertext: ct}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save label", err)
	}
	return nil
}

// GetLabel loads a label by (vaultID, identifier).
func (s *Store) GetLabel(vaultID ids.VaultID, identifier string) (*label.Label, bool, error) {
	var row LabelRow
	err := s.db.Where("vault_id = ? AND identifier = ?", vaultID.String(), identifier).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Walletf("get label", err)
	}
	pt, err := s.unseal(row.Ciphertext)
	if err != nil {
		return nil, false, err
	}
	var dto labelDTO
	if err := json.Unmarshal(pt, &dto); err != nil {
		return nil, false, errs.Walletf("decode label", err)
	}
	return &label.Label{
		VaultID: vaultID,
		Data:    label.Data{Kind: label.Kind(dto.Kind), Value: dto.Value},
		Text:    dto.Text,
	}, true, nil
}

// --- notifications ------------------------------------------------------

// SaveNotification records a new notification for eventID.
func (s *Store) SaveNotification(kind string, eventID ids.EventID) error {
	row := NotificationRow{
		ID:        uuid.NewString(),
		Kind:      kind,
		EventID:   eventID.String(),
		Seen:      false,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return errs.Walletf("save notification", err)
	}
	return nil
}

// GetNotifications returns every notification, optionally only unseen ones.
func (s *Store) GetNotifications(onlyUnseen bool) ([]NotificationRow, error) {
	q := s.db.Order("created_at desc")
	if onlyUnseen {
		q = q.Where("seen = ?", false)
	}
	var rows []NotificationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list notifications", err)
	}
	return rows, nil
}

// MarkNotificationSeen flips a notification's seen flag.
func (s *Store) MarkNotificationSeen(id string) error {
	if err := s.db.Model(&NotificationRow{}).Where("id = ?", id).Update("seen", true).Error; err != nil {
		return errs.Walletf("mark notification seen", err)
	}
	return nil
}

// --- contacts ------------------------------------------------------------

// ReplaceContacts atomically replaces the contact list (spec.md §4.D
// Contact list effect: "replace contact set").
func (s *Store) ReplaceContacts(contacts map[ids.PubKey]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ContactRow{}).Error; err != nil {
			return err
		}
		for pk, petname := range contacts {
			row := ContactRow{PubKey: pk.String(), Petname: petname}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListContacts returns the full contact list.
func (s *Store) ListContacts() ([]ContactRow, error) {
	var rows []ContactRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list contacts", err)
	}
	return rows, nil
}

// ListKnownParticipants returns every pubkey this participant shares a
// vault with, deduplicated, for the Sync Engine's metadata prefetcher
// (spec.md §4.E).
func (s *Store) ListKnownParticipants() ([]ids.PubKey, error) {
	var hexes []string
	if err := s.db.Model(&ParticipantRow{}).Distinct("pub_key").Pluck("pub_key", &hexes).Error; err != nil {
		return nil, errs.Walletf("list known participants", err)
	}
	out := make([]ids.PubKey, 0, len(hexes))
	for _, h := range hexes {
		pk, err := ids.PubKeyFromHex(h)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

// --- metadata --------------------------------------------------------------

// UpsertMetadata records the latest metadata for a participant (spec.md
// §4.D Metadata effect).
func (s *Store) UpsertMetadata(pubkey ids.PubKey, name, about string, syncedAt time.Time) error {
	row := MetadataSyncRow{PubKey: pubkey.String(), LastSyncAt: syncedAt.Unix(), Name: name, About: about}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("upsert metadata", err)
	}
	return nil
}

// MetadataStale reports whether pubkey's metadata needs refreshing.
func (s *Store) MetadataStale(pubkey ids.PubKey, interval time.Duration) (bool, error) {
	var row MetadataSyncRow
	err := s.db.Where("pub_key = ?", pubkey.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return true, nil
	}
	if err != nil {
		return false, errs.Walletf("get metadata sync state", err)
	}
	return time.Since(unixTime(row.LastSyncAt)) >= interval, nil
}

// --- pending events ---------------------------------------------------

// SavePendingEvent stores a raw event whose handler could not yet resolve a
// prerequisite (spec.md §3 Pending event).
func (s *Store) SavePendingEvent(ev *protocol.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return errs.Walletf("encode pending event", err)
	}
	row := PendingEventRow{ID: ev.ID.String(), RawJSON: raw}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save pending event", err)
	}
	return nil
}

// GetPendingEvents returns every queued pending event.
func (s *Store) GetPendingEvents() ([]*protocol.Event, error) {
	var rows []PendingEventRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list pending events", err)
	}
	out := make([]*protocol.Event, 0, len(rows))
	for _, r := range rows {
		var ev protocol.Event
		if err := json.Unmarshal(r.RawJSON, &ev); err != nil {
			return nil, errs.Walletf("decode pending event", err)
		}
		out = append(out, &ev)
	}
	return out, nil
}

// PendingEventExists reports whether id is still queued, used by the
// pending-event replayer to tell "handled" apart from "deferred again"
// since both return a nil error from Handle (spec.md §4.D: the handler is
// a total function).
func (s *Store) PendingEventExists(id ids.EventID) (bool, error) {
	return s.rowExists(&PendingEventRow{}, id.String())
}

// DeletePendingEvent removes id from the pending queue after a successful
// replay.
func (s *Store) DeletePendingEvent(id ids.EventID) error {
	if err := s.db.Where("id = ?", id.String()).Delete(&PendingEventRow{}).Error; err != nil {
		return errs.Walletf("delete pending event", err)
	}
	return nil
}

// BumpPendingFailure increments id's retry counter after a repeated replay
// failure (spec.md §4.E pending-event replayer: "drop on success; keep on
// repeated failure").
func (s *Store) BumpPendingFailure(id ids.EventID) error {
	if err := s.db.Model(&PendingEventRow{}).Where("id = ?", id.String()).
		Update("failure_count", gorm.Expr("failure_count + 1")).Error; err != nil {
		return errs.Walletf("bump pending failure count", err)
	}
	return nil
}

// --- relay sync state ------------------------------------------------

// RelayLastSync returns a relay's last-synced timestamp, or zero if never
// synced (spec.md §4.E: `since = max(last-sync-of-this-relay, 0)`).
func (s *Store) RelayLastSync(url string) (time.Time, error) {
	var row RelaySyncRow
	err := s.db.Where("url = ?", url).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errs.Walletf("get relay sync state", err)
	}
	return unixTime(row.LastSyncAt), nil
}

// SetRelayLastSync records now as url's last-synced timestamp.
func (s *Store) SetRelayLastSync(url string, now time.Time) error {
	row := RelaySyncRow{URL: url, LastSyncAt: now.Unix()}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("set relay sync state", err)
	}
	return nil
}

// --- generic deletion dispatch ------------------------------------------

// DeleteGenericEventID dispatches to the appropriate typed delete based on
// which table owns id, falling back to a bare tombstone (spec.md §4.A
// `delete_generic_event_id`).
func (s *Store) DeleteGenericEventID(id ids.EventID) error {
	hexID := id.String()

	if exists, err := s.rowExists(&VaultRow{}, hexID); err != nil {
		return err
	} else if exists {
		return s.DeleteVault(id)
	}
	if exists, err := s.rowExists(&ProposalRow{}, hexID); err != nil {
		return err
	} else if exists {
		return s.DeleteProposal(id)
	}
	if exists, err := s.rowExists(&ApprovalRow{}, hexID); err != nil {
		return err
	} else if exists {
		return s.DeleteApproval(id)
	}
	if exists, err := s.rowExists(&CompletionRow{}, hexID); err != nil {
		return err
	} else if exists {
		return s.DeleteCompletion(id)
	}
	if exists, err := s.rowExistsBy(&SignerRow{}, hexID); err != nil {
		return err
	} else if exists {
		if err := s.db.Where("id = ?", hexID).Delete(&SignerRow{}).Error; err != nil {
			return errs.Walletf("delete signer", err)
		}
	}
	return s.SetEventAsDeleted(id)
}

func (s *Store) rowExists(model interface{}, id string) (bool, error) {
	var count int64
	if err := s.db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errs.Walletf("check row existence", err)
	}
	return count > 0, nil
}

func (s *Store) rowExistsBy(model interface{}, id string) (bool, error) {
	return s.rowExists(model, id)
}

// --- nostr-connect sessions ----------------------------------------------

// SaveConnectSession records a session, optionally pre-authorized until
// expiresAt (zero means not pre-authorized).
func (s *Store) SaveConnectSession(appPubKey ids.PubKey, relayURL string, expiresAt time.Time) error {
	row := ConnectSessionRow{
		AppPubKey: appPubKey.String(),
		RelayURL:  relayURL,
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: time.Now().Unix(),
	}
	if expiresAt.IsZero() {
		row.ExpiresAt = 0
	}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save connect session", err)
	}
	return nil
}

// GetConnectSession reports whether a session is open for appPubKey.
func (s *Store) GetConnectSession(appPubKey ids.PubKey) (ConnectSessionRow, bool, error) {
	var row ConnectSessionRow
	err := s.db.Where("app_pub_key = ?", appPubKey.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return row, false, nil
	}
	if err != nil {
		return row, false, errs.Walletf("get connect session", err)
	}
	return row, true, nil
}

// SessionPreauthorized reports whether row grants standing authorization
// at checkAt (spec.md §4.F: "if the session is pre-authorized (time-bounded
// grant), auto-generate and publish the response").
func (row ConnectSessionRow) SessionPreauthorized(checkAt time.Time) bool {
	return row.ExpiresAt != 0 && checkAt.Before(unixTime(row.ExpiresAt))
}

// SaveConnectRequest stores an inbound nostr-connect request pending
// approval.
func (s *Store) SaveConnectRequest(id ids.EventID, appPubKey ids.PubKey, method string, paramsJSON string, approved bool) error {
	row := ConnectRequestRow{
		ID:         id.String(),
		AppPubKey:  appPubKey.String(),
		Method:     method,
		ParamsJSON: paramsJSON,
		Approved:   approved,
		CreatedAt:  time.Now().Unix(),
	}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.Walletf("save connect request", err)
	}
	return nil
}

// GetConnectRequests returns every connect request matching approved
// (spec.md §4.F `get_nostr_connect_requests(approved)`).
func (s *Store) GetConnectRequests(approved bool) ([]ConnectRequestRow, error) {
	var rows []ConnectRequestRow
	if err := s.db.Where("approved = ?", approved).Find(&rows).Error; err != nil {
		return nil, errs.Walletf("list connect requests", err)
	}
	return rows, nil
}

// GetConnectRequestByID loads a single pending request, for
// `approve_nostr_connect_request`/`reject_nostr_connect_request`.
func (s *Store) GetConnectRequestByID(id ids.EventID) (ConnectRequestRow, bool, error) {
	var row ConnectRequestRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return row, false, nil
	}
	if err != nil {
		return row, false, errs.Walletf("get connect request", err)
	}
	return row, true, nil
}

// MarkConnectRequestApproved flips a request's approved flag after
// `approve_nostr_connect_request` / auto-approval.
func (s *Store) MarkConnectRequestApproved(id ids.EventID) error {
	if err := s.db.Model(&ConnectRequestRow{}).Where("id = ?", id.String()).Update("approved", true).Error; err != nil {
		return errs.Walletf("mark connect request approved", err)
	}
	return nil
}

// DeleteConnectRequest removes a request after `reject_nostr_connect_request`.
func (s *Store) DeleteConnectRequest(id ids.EventID) error {
	if err := s.db.Where("id = ?", id.String()).Delete(&ConnectRequestRow{}).Error; err != nil {
		return errs.Walletf("delete connect request", err)
	}
	return nil
}
