package mempool

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/util/atomicfile"
	"github.com/ramianet/ramiad/wire"
)

// snapshotTx is the JSON shape of one pending transaction in the mempool
// snapshot file.
type snapshotTx struct {
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Memo      string `json:"memo,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature,omitempty"`
}

// WriteSnapshot persists the pending transactions to path. The snapshot is
// best effort: it exists so a restart can repopulate the pool, and any
// failure to read it later just means starting with an empty pool.
func (mp *TxPool) WriteSnapshot(path string) error {
	descs := mp.MiningDescs()

	snapshot := make([]snapshotTx, 0, len(descs))
	for _, desc := range descs {
		tx := desc.Tx
		snapshot = append(snapshot, snapshotTx{
			Sender:    tx.Sender,
			Recipient: tx.Recipient,
			Amount:    tx.Amount,
			Fee:       tx.Fee,
			Memo:      tx.Memo,
			Timestamp: tx.Timestamp,
			Nonce:     tx.Nonce,
			Signature: base64.StdEncoding.EncodeToString(tx.Signature),
		})
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(snapshot); err != nil {
		return errors.Wrap(err, "couldn't marshal mempool snapshot")
	}
	return atomicfile.Write(path, buf.Bytes(), 0600)
}

// LoadSnapshot reads a snapshot written by WriteSnapshot and re-admits
// every transaction through the normal admission path, so anything that no
// longer passes (spent balance, stale nonce) is silently dropped. A
// missing or unreadable snapshot rebuilds an empty pool.
func (mp *TxPool) LoadSnapshot(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Ignoring unreadable mempool snapshot %s: %s", path, err)
		}
		return
	}

	var snapshot []snapshotTx
	if err := json.Unmarshal(data, &snapshot); err != nil {
		log.Warnf("Ignoring corrupt mempool snapshot %s: %s", path, err)
		return
	}

	admitted := 0
	for i := range snapshot {
		entry := &snapshot[i]
		signature, err := base64.StdEncoding.DecodeString(entry.Signature)
		if err != nil {
			continue
		}
		tx := &wire.Tx{
			Sender:    entry.Sender,
			Recipient: entry.Recipient,
			Amount:    entry.Amount,
			Fee:       entry.Fee,
			Memo:      entry.Memo,
			Timestamp: entry.Timestamp,
			Nonce:     entry.Nonce,
			Signature: signature,
		}
		if _, err := mp.ProcessTransaction(tx); err == nil {
			admitted++
		}
	}
	if admitted > 0 {
		log.Infof("Restored %d of %d mempool transactions from snapshot",
			admitted, len(snapshot))
	}
}
