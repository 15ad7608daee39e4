package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smartvaults/svengine/errs"
)

// EsploraClient implements Client against a mempool.space/Esplora-style HTTP
// indexer API, the form spec.md §6's Configuration section names for
// `block_explorer` (no pack dependency wraps this API — see DESIGN.md).
type EsploraClient struct {
	baseURL string
	http    *http.Client
}

// NewEsploraClient builds a client against baseURL (e.g.
// "https://mempool.space/api"), optionally routed through a SOCKS5 proxy
// (spec.md §6: "Optional SOCKS5 proxy").
func NewEsploraClient(baseURL string, timeout time.Duration, transport http.RoundTripper) *EsploraClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EsploraClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (c *EsploraClient) get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return nil, errs.External("chain: http get "+path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.External("chain: read response body", err)
	}
	if resp.StatusCode >= 300 {
		return nil, errs.External(fmt.Sprintf("chain: %s returned %d: %s", path, resp.StatusCode, body), nil)
	}
	return body, nil
}

// Tip implements Client.
func (c *EsploraClient) Tip() (uint32, error) {
	body, err := c.get("/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 0, errs.External("chain: malformed tip height", err)
	}
	return uint32(height), nil
}

// Broadcast implements Client.
func (c *EsploraClient) Broadcast(rawTxHex string) (string, error) {
	resp, err := c.http.Post(c.baseURL+"/tx", "text/plain", bytes.NewBufferString(rawTxHex))
	if err != nil {
		return "", errs.External("chain: broadcast", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.External("chain: read broadcast response", err)
	}
	if resp.StatusCode >= 300 {
		return "", errs.External(fmt.Sprintf("chain: broadcast rejected: %s", body), nil)
	}
	return strings.TrimSpace(string(body)), nil
}

// EstimateFee implements Client.
func (c *EsploraClient) EstimateFee(targetBlocks int) (float64, error) {
	body, err := c.get("/fee-estimates")
	if err != nil {
		return 0, err
	}
	var estimates map[string]float64
	if err := json.Unmarshal(body, &estimates); err != nil {
		return 0, errs.External("chain: malformed fee estimates", err)
	}
	key := strconv.Itoa(targetBlocks)
	if rate, ok := estimates[key]; ok {
		return rate, nil
	}
	// Fall back to the closest looser target available, since the exact
	// block target isn't guaranteed to be a key in the response.
	best := 0.0
	bestDelta := -1
	for k, rate := range estimates {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		delta := n - targetBlocks
		if delta < 0 {
			continue
		}
		if bestDelta == -1 || delta < bestDelta {
			bestDelta = delta
			best = rate
		}
	}
	if bestDelta == -1 {
		return 0, errs.External("chain: no usable fee estimate", nil)
	}
	return best, nil
}

type esploraUTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint32 `json:"block_height"`
	} `json:"status"`
}

// GetUTXOs implements Client.
func (c *EsploraClient) GetUTXOs(address string) ([]UTXO, error) {
	body, err := c.get("/address/" + address + "/utxo")
	if err != nil {
		return nil, err
	}
	var raw []esploraUTXO
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.External("chain: malformed utxo list", err)
	}
	out := make([]UTXO, 0, len(raw))
	for _, u := range raw {
		out = append(out, UTXO{
			TxID:    u.TxID,
			Vout:    u.Vout,
			Value:   u.Value,
			Height:  u.Status.BlockHeight,
			Address: address,
		})
	}
	return out, nil
}

type esploraTx struct {
	TxID   string `json:"txid"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint32 `json:"block_height"`
	} `json:"status"`
}

// GetAddressTxs implements Client.
func (c *EsploraClient) GetAddressTxs(address string) ([]Tx, error) {
	body, err := c.get("/address/" + address + "/txs")
	if err != nil {
		return nil, err
	}
	var raw []esploraTx
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.External("chain: malformed tx list", err)
	}
	out := make([]Tx, 0, len(raw))
	for _, t := range raw {
		out = append(out, Tx{TxID: t.TxID, Height: t.Status.BlockHeight})
	}
	return out, nil
}
