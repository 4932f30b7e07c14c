package public

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/script"
	"github.com/ardanlabs/powchain/foundation/nameservice"
)

// txIn is an input of a submitted transaction.
type txIn struct {
	TxHash   database.Hash `json:"tx_hash"`
	Index    uint32        `json:"index"`
	Solution string        `json:"solution" validate:"required"`
}

// txOut is an output of a submitted transaction.
type txOut struct {
	Value uint64 `json:"value" validate:"gt=0"`
	Lock  string `json:"lock" validate:"required"`
}

// txRequest is the transaction a wallet submits.
type txRequest struct {
	Nonce uint64  `json:"nonce"`
	Vin   []txIn  `json:"vin" validate:"required,min=1,dive"`
	Vout  []txOut `json:"vout" validate:"required,min=1,dive"`
}

func (req txRequest) toTx() database.Tx {
	tx := database.Tx{
		Nonce: req.Nonce,
		Vin:   make([]database.UTXOU, len(req.Vin)),
		Vout:  make([]database.UTXO, len(req.Vout)),
	}

	for i, in := range req.Vin {
		tx.Vin[i] = database.UTXOU{TxHash: in.TxHash, Index: in.Index, Solution: in.Solution}
	}
	for i, out := range req.Vout {
		tx.Vout[i] = database.UTXO{Value: out.Value, Lock: out.Lock}
	}

	return tx
}

// =============================================================================

// utxo is an unspent output with the owner resolved where possible.
type utxo struct {
	TxHash database.Hash `json:"tx_hash"`
	Index  uint32        `json:"index"`
	Value  uint64        `json:"value"`
	Lock   string        `json:"lock"`
	Owner  string        `json:"owner,omitempty"`
	Name   string        `json:"name,omitempty"`
}

func toUTXOs(outs []database.Output, ns *nameservice.NameService) []utxo {
	utxos := make([]utxo, len(outs))
	for i, out := range outs {
		u := utxo{
			TxHash: out.OutPoint.TxHash,
			Index:  out.OutPoint.Index,
			Value:  out.UTXO.Value,
			Lock:   out.UTXO.Lock,
		}

		if owner, ok := script.AddressFromLock(out.UTXO.Lock); ok {
			u.Owner = owner
			if ns != nil {
				u.Name = ns.Lookup(owner)
			}
		}

		utxos[i] = u
	}
	return utxos
}

// balance is the set of outputs owned by an address.
type balance struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
	UTXOs   []utxo `json:"utxos"`
}

// mempoolTx is a pending transaction with its hash.
type mempoolTx struct {
	Hash database.Hash `json:"hash"`
	Tx   database.Tx   `json:"tx"`
}
