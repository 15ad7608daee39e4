package proposal

import (
	"bytes"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/smartvaults/svengine/errs"
)

// EncodePSBT renders pkt as base64, the wire/storage form used everywhere a
// PSBT travels as JSON (the relay payload, the local store).
func EncodePSBT(pkt *psbt.Packet) (string, error) {
	if pkt == nil {
		return "", nil
	}
	return pkt.B64Encode()
}

// DecodePSBT parses a base64 PSBT produced by EncodePSBT. An empty string
// decodes to a nil packet.
func DecodePSBT(b64 string) (*psbt.Packet, error) {
	if strings.TrimSpace(b64) == "" {
		return nil, nil
	}
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader([]byte(b64)), true)
	if err != nil {
		return nil, errs.Walletf("decode psbt", err)
	}
	return pkt, nil
}
