// Package vault implements the Vault entity (spec.md §3), taproot
// descriptor validation, and policy-path discovery over a PolicyNode
// threshold tree (spec.md §8).
package vault

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/smartvaults/svengine/config"
	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/ids"
)

// taprootPrefix identifies a taproot descriptor, per BIP-386 `tr(...)`.
const taprootPrefix = "tr("

// Vault is the collaboratively controlled Bitcoin wallet entity.
type Vault struct {
	ID           ids.VaultID
	Name         string
	Description  string
	Descriptor   string
	Network      config.Network
	Participants []ids.PubKey
}

// NetParams maps a config.Network to the matching chaincfg.Params, used to
// validate that the descriptor's embedded keys match the configured
// network.
func NetParams(network config.Network) (*chaincfg.Params, error) {
	switch network {
	case config.Mainnet:
		return &chaincfg.MainNetParams, nil
	case config.Testnet:
		return &chaincfg.TestNet3Params, nil
	case config.Signet:
		return &chaincfg.SigNetParams, nil
	case config.Regtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("vault: unknown network %q", network)
	}
}

// ValidateDescriptor enforces spec.md §3's Vault invariant: the descriptor
// parses as a taproot type. Full miniscript/BDK descriptor parsing is the
// external Wallet Library's job (spec.md §1); this package only verifies
// the shape needed to reject non-taproot descriptors early. No PolicyNode
// tree is built from the descriptor.
func ValidateDescriptor(descriptor string) error {
	trimmed := strings.TrimSpace(descriptor)
	if !strings.HasPrefix(trimmed, taprootPrefix) {
		return errs.Validation("descriptor must be a taproot (tr(...)) descriptor")
	}
	if !strings.HasSuffix(trimmed, ")") {
		return errs.Validation("malformed descriptor: unbalanced parentheses")
	}
	return nil
}

// New validates and constructs a Vault. id is assigned by the caller once
// the vault-creation event has been signed (spec.md §3: a vault is keyed by
// the id of the creating event).
func New(id ids.VaultID, name, description, descriptor string, network config.Network, participants []ids.PubKey) (*Vault, error) {
	if len(participants) < 2 {
		return nil, errs.Validation("a vault requires at least 2 participants")
	}
	if err := ValidateDescriptor(descriptor); err != nil {
		return nil, err
	}
	if _, err := NetParams(network); err != nil {
		return nil, errs.Validationf("unsupported network", err)
	}
	return &Vault{
		ID:           id,
		Name:         name,
		Description:  description,
		Descriptor:   descriptor,
		Network:      network,
		Participants: participants,
	}, nil
}

// IsInternalKey reports whether pub's x-only form is the descriptor's
// taproot internal key, i.e. the descriptor begins with `tr(<pub>`
// (spec.md §4.F `approve`: "marked internal-key iff the vault descriptor
// begins with the taproot prefix that identifies this key as the internal
// key").
func (v *Vault) IsInternalKey(pub ids.PubKey) bool {
	trimmed := strings.TrimPrefix(strings.TrimSpace(v.Descriptor), taprootPrefix)
	return strings.HasPrefix(trimmed, pub.String())
}
