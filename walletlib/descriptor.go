package walletlib

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/smartvaults/svengine/errs"
)

// ParseDescriptor implements Library. Full miniscript/BDK descriptor
// parsing is out of scope (spec.md §1 Non-goals name the Wallet Library as
// an external collaborator, not something this engine re-implements); this
// extracts just the taproot internal key, the one piece this package's
// BuildSpend, BuildProofOfReserve and VerifyProof need.
func (l *ChainBackedLibrary) ParseDescriptor(descriptor string) (*btcec.PublicKey, error) {
	return parseInternalKey(descriptor)
}

func parseInternalKey(descriptor string) (*btcec.PublicKey, error) {
	trimmed := strings.TrimSpace(descriptor)
	if !strings.HasPrefix(trimmed, "tr(") || !strings.HasSuffix(trimmed, ")") {
		return nil, errs.Validation("walletlib: descriptor must be a taproot (tr(...)) descriptor")
	}
	body := trimmed[len("tr(") : len(trimmed)-1]
	keyPart := body
	if idx := strings.Index(body, ","); idx >= 0 {
		keyPart = body[:idx]
	}
	keyPart = stripKeyOrigin(keyPart)

	raw, err := hex.DecodeString(keyPart)
	if err != nil || len(raw) != 32 {
		return nil, errs.Validation("walletlib: descriptor internal key must be a 32-byte x-only hex key")
	}
	full := make([]byte, 33)
	full[0] = 0x02
	copy(full[1:], raw)
	pub, err := btcec.ParsePubKey(full)
	if err != nil {
		return nil, errs.Validationf("walletlib: invalid internal key", err)
	}
	return pub, nil
}

// stripKeyOrigin removes a leading `[fingerprint/path]` key-origin prefix,
// if present, leaving the bare key.
func stripKeyOrigin(key string) string {
	if !strings.HasPrefix(key, "[") {
		return key
	}
	if idx := strings.Index(key, "]"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
