package store

// Row types persisted by gorm, one table per entity in spec.md §3. Every
// row keyed by an EventID/PubKey stores it as lowercase hex, matching
// ids.EventID.String()/ids.PubKey.String(). Vault descriptors, shared keys,
// and the proposal, approval, completion and label payloads are stored as
// opaque ciphertext blobs encrypted under the store-wide identity-derived
// key; the other columns (vault names and descriptions, signer and
// shared-signer descriptors, metadata, contacts, connect requests, pending
// events) are stored in plaintext.

// EventRow is the raw-event table with its tombstone bit (spec.md §4.A
// `save_event`/`set_event_as_deleted`).
type EventRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	PubKey    string `gorm:"size:64;index"`
	CreatedAt int64
	Kind      int `gorm:"index"`
	TagsJSON  string
	Content   string
	Sig       string `gorm:"size:128"`
	Deleted   bool   `gorm:"index"`
}

func (EventRow) TableName() string { return "events" }

// VaultRow is a vault's immutable metadata (spec.md §3 Vault).
type VaultRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string
	Description string
	Descriptor  []byte
	Network     string `gorm:"size:16"`
}

func (VaultRow) TableName() string { return "vaults" }

// ParticipantRow maps a vault to one of its participants.
type ParticipantRow struct {
	VaultID string `gorm:"primaryKey;size:64"`
	PubKey  string `gorm:"primaryKey;size:64"`
}

func (ParticipantRow) TableName() string { return "vault_participants" }

// SharedKeyRow holds the one symmetric key bound to a vault (spec.md §3
// Shared key), encrypted at rest.
type SharedKeyRow struct {
	VaultID    string `gorm:"primaryKey;size:64"`
	Ciphertext []byte
}

func (SharedKeyRow) TableName() string { return "shared_keys" }

// ProposalRow persists a tagged Proposal (spec.md §3).
type ProposalRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	VaultID    string `gorm:"index;size:64"`
	Type       int
	Ciphertext []byte
}

func (ProposalRow) TableName() string { return "proposals" }

// ApprovalRow persists one signer's contribution. Invariant: at most one
// effective row per (ProposalID, Author) — enforced in Store.SaveApproval
// by last-timestamp-wins, not by a DB constraint, since the superseded row
// must still be replaced rather than rejected.
type ApprovalRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	ProposalID string `gorm:"index;size:64"`
	VaultID    string `gorm:"index;size:64"`
	Author     string `gorm:"index;size:64"`
	Timestamp  int64
	Expiration int64
	Ciphertext []byte
}

func (ApprovalRow) TableName() string { return "approvals" }

// CompletionRow persists a proposal's terminal record.
type CompletionRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	ProposalID string `gorm:"uniqueIndex;size:64"`
	VaultID    string `gorm:"index;size:64"`
	Type       int
	Ciphertext []byte
}

func (CompletionRow) TableName() string { return "completed_proposals" }

// SignerRow persists a self-authored Signer. Invariant: Descriptor is
// unique across a participant's own signers (spec.md §3).
type SignerRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Fingerprint string `gorm:"index;size:16"`
	Descriptor  string `gorm:"uniqueIndex"`
	Name        string
	Description string
	Type        int
}

func (SignerRow) TableName() string { return "signers" }

// SharedSignerRow persists a signer descriptor disclosed by another
// participant (spec.md §3 Shared signer), keyed by its author.
type SharedSignerRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	OwnerPubKey string `gorm:"index;size:64"`
	Fingerprint string `gorm:"size:16"`
	Descriptor  string
}

func (SharedSignerRow) TableName() string { return "shared_signers" }

// MySharedSignerRow remembers a signer this participant disclosed to
// someone else, keyed by (SignerID, Recipient), so `share_signer` can
// reject a duplicate disclosure (spec.md §4.F).
type MySharedSignerRow struct {
	SignerID  string `gorm:"primaryKey;size:64"`
	Recipient string `gorm:"primaryKey;size:64"`
	EventID   string `gorm:"size:64"`
}

func (MySharedSignerRow) TableName() string { return "my_shared_signers" }

// LabelRow persists a Label, keyed by (VaultID, Identifier) (spec.md §3,
// §4.C: the deterministic identifier makes this a replaceable record).
type LabelRow struct {
	VaultID    string `gorm:"primaryKey;size:64"`
	Identifier string `gorm:"primaryKey;size:32"`
	Ciphertext []byte
}

func (LabelRow) TableName() string { return "labels" }

// NotificationRow persists a Notification (spec.md §3), keyed by the
// originating event id.
type NotificationRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Kind      string `gorm:"size:32;index"`
	EventID   string `gorm:"index;size:64"`
	Seen      bool   `gorm:"index"`
	CreatedAt int64
}

func (NotificationRow) TableName() string { return "notifications" }

// ContactRow persists one entry of the participant's own contact list
// (spec.md §4.D Contact list).
type ContactRow struct {
	PubKey  string `gorm:"primaryKey;size:64"`
	Petname string
}

func (ContactRow) TableName() string { return "contacts" }

// PendingEventRow holds a raw signed event whose handler could not yet
// resolve a prerequisite (spec.md §3 Pending event).
type PendingEventRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	RawJSON      []byte
	FailureCount int
}

func (PendingEventRow) TableName() string { return "pending_events" }

// RelaySyncRow tracks each relay's last-synced timestamp (spec.md §4.E
// relay subscription: `since = max(last-sync-of-this-relay, 0)`).
type RelaySyncRow struct {
	URL        string `gorm:"primaryKey"`
	LastSyncAt int64
}

func (RelaySyncRow) TableName() string { return "relay_sync" }

// MetadataSyncRow tracks each participant's metadata freshness (spec.md
// §4.E Metadata prefetcher).
type MetadataSyncRow struct {
	PubKey     string `gorm:"primaryKey;size:64"`
	LastSyncAt int64
	Name       string
	About      string
}

func (MetadataSyncRow) TableName() string { return "metadata" }

// ConnectSessionRow persists a nostr-connect session (spec.md §3.2
// supplemented feature): the remote app's pubkey, the relay it listens on,
// and an optional pre-authorization expiry. ExpiresAt == 0 means the
// session is open but not pre-authorized — every non-trivial request needs
// an explicit approve/reject.
type ConnectSessionRow struct {
	AppPubKey string `gorm:"primaryKey;size:64"`
	RelayURL  string
	ExpiresAt int64
	CreatedAt int64
}

func (ConnectSessionRow) TableName() string { return "connect_sessions" }

// ConnectRequestRow persists an inbound nostr-connect request awaiting
// approval (spec.md §4.F: "persist as pending and expose via
// get_nostr_connect_requests(approved=false)").
type ConnectRequestRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	AppPubKey  string `gorm:"index;size:64"`
	Method     string
	ParamsJSON string
	Approved   bool `gorm:"index"`
	CreatedAt  int64
}

func (ConnectRequestRow) TableName() string { return "connect_requests" }
