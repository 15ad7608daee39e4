package syncengine

import "time"

// Tick periods are fixed by spec.md §4.E; only the staleness intervals they
// gate are configurable.
const (
	blockHeightTick = 10 * time.Second
	walletSyncTick  = 30 * time.Second
	pendingTick     = 30 * time.Second
	metadataTick    = 60 * time.Second
	rebroadcastTick = 60 * time.Second
)

// Config holds the staleness thresholds each task compares against its
// cached state (spec.md §4.E).
type Config struct {
	// BlockHeightSyncInterval gates the block-height syncer.
	BlockHeightSyncInterval time.Duration

	// WalletSyncInterval gates the vault chain syncer.
	WalletSyncInterval time.Duration

	// MetadataSyncInterval gates the metadata prefetcher.
	MetadataSyncInterval time.Duration

	// RebroadcastInterval gates the rebroadcaster.
	RebroadcastInterval time.Duration
}

// DefaultConfig returns spec.md's named defaults, with RebroadcastInterval
// set per the decision recorded in DESIGN.md (spec.md leaves the threshold
// unspecified).
func DefaultConfig() Config {
	return Config{
		BlockHeightSyncInterval: 60 * time.Second,
		WalletSyncInterval:      60 * time.Second,
		MetadataSyncInterval:    24 * time.Hour,
		RebroadcastInterval:     6 * time.Hour,
	}
}
