// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// SubmitTransaction queues a transaction shared by a peer.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("peer tx", "traceid", v.TraceID, "origin", r.Header.Get(peer.HostHeader), "tx", tx.Hash())

	if err := h.State.SubmitTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// NextBlock queues a block mined by a peer along with the height of the
// peer's chain. The block is reconciled by the next loop iteration.
func (h Handlers) NextBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	origin := r.Header.Get(peer.HostHeader)
	if origin == "" {
		return errs.NewTrusted(errors.New("missing origin host"), http.StatusBadRequest)
	}

	height, err := web.QueryUint64(r, "height", 0)
	if err != nil || height == 0 {
		return errs.NewTrusted(errors.New("missing or invalid claimed height"), http.StatusBadRequest)
	}

	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("peer block", "traceid", v.TraceID, "origin", origin, "claimed", height, "block", block.Hash())

	h.State.AddKnownPeer(peer.New(origin))
	h.State.SubmitBlock(origin, height, block)

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Status returns the current status of the node. The calling node is added
// to the known peers.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if origin := r.Header.Get(peer.HostHeader); origin != "" {
		h.State.AddKnownPeer(peer.New(origin))
	}

	return web.Respond(ctx, w, h.State.QueryStatus(), http.StatusOK)
}

// Chain returns the full chain so a peer can verify and adopt it.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryChain(), http.StatusOK)
}
