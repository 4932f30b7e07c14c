// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the blockchain or ticker.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction queues a wallet transaction for the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req txRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	tx := req.toTx()

	h.Log.Infow("submit tx", "traceid", v.TraceID, "tx", tx.Hash(), "inputs", len(tx.Vin), "outputs", len(tx.Vout))

	if err := h.State.SubmitTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
	}{
		Status: "accepted",
		Hash:   tx.Hash().String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Height returns the number of blocks in the chain.
func (h Handlers) Height(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Height uint64 `json:"height"`
	}{
		Height: h.State.QueryHeight(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Blocks returns the blocks in the half-open range [start, stop). Both
// bounds are optional and clamped to the chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	start, err := web.QueryUint64(r, "start", 0)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	stop, err := web.QueryUint64(r, "stop", h.State.QueryHeight())
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocks(start, stop)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Difficulty returns the target the next block must meet.
func (h Handlers) Difficulty(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	target := h.State.QueryDifficulty()

	resp := struct {
		Target       string `json:"target"`
		LeadingZeros int    `json:"leading_zero_bits"`
	}{
		Target:       target.String(),
		LeadingZeros: target.LeadingZeroBits(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// UTXOs returns every unspent output.
func (h Handlers) UTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toUTXOs(h.State.QueryUTXOs(), h.NS), http.StatusOK)
}

// Balance returns the unspent outputs locked to an address and their total.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")
	if err := signature.ValidateAddress(address); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	outs, total := h.State.QueryUTXOsByAddress(address)

	resp := balance{
		Address: address,
		Name:    h.NS.Lookup(address),
		Balance: total,
		UTXOs:   toUTXOs(outs, h.NS),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of pending transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.QueryMempool()

	pending := make([]mempoolTx, len(txs))
	for i, tx := range txs {
		pending[i] = mempoolTx{Hash: tx.Hash(), Tx: tx}
	}

	return web.Respond(ctx, w, pending, http.StatusOK)
}

// TxProof returns the merkle proof that a transaction was mined.
func (h Handlers) TxProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txHash, err := database.ToHash(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	inc, err := h.State.QueryTxProof(txHash)
	if err != nil {
		if errors.Is(err, merkle.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, inc, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryStatus(), http.StatusOK)
}

// SignalMining asks the node to start a mining operation if one isn't
// already running.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return errs.NewTrusted(fmt.Errorf("node isn't running"), http.StatusServiceUnavailable)
	}

	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signaled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
