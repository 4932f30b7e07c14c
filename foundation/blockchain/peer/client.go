package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

// HostHeader carries the host of the node making a request so the receiver
// knows which peer to fetch a chain from.
const HostHeader = "X-Node-Host"

// baseURL is the root of the private node API on a peer.
const baseURL = "http://%s/v1/node"

// Client talks to the private API of other nodes.
type Client struct {
	host    string
	http    *http.Client
	limiter ratelimit.Limiter
}

// NewClient constructs a client for the node running on host. Requests are
// paced to at most rps per second.
func NewClient(host string, rps int) *Client {
	if rps <= 0 {
		rps = 50
	}

	return &Client{
		host:    host,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: ratelimit.New(rps),
	}
}

// Status asks the peer for its chain height, tip and known peers.
func (c *Client) Status(ctx context.Context, pr Peer) (PeerStatus, error) {
	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps PeerStatus
	if err := c.send(ctx, http.MethodGet, url, nil, &ps); err != nil {
		return PeerStatus{}, err
	}

	return ps, nil
}

// FetchChain retrieves the full chain of the peer.
func (c *Client) FetchChain(ctx context.Context, pr Peer) (database.Blockchain, error) {
	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, pr.Host))

	var chain database.Blockchain
	if err := c.send(ctx, http.MethodGet, url, nil, &chain); err != nil {
		return nil, err
	}

	return chain, nil
}

// BroadcastBlock sends the block, with the height it claims, to every peer.
// The first failure is returned once every send has completed.
func (c *Client) BroadcastBlock(ctx context.Context, peers []Peer, height uint64, block database.Block) error {
	return c.broadcast(ctx, peers, func(ctx context.Context, pr Peer) error {
		url := fmt.Sprintf("%s/block/next?height=%d", fmt.Sprintf(baseURL, pr.Host), height)
		return c.send(ctx, http.MethodPost, url, block, nil)
	})
}

// BroadcastTx shares the transaction with every peer. The first failure is
// returned once every send has completed.
func (c *Client) BroadcastTx(ctx context.Context, peers []Peer, tx database.Tx) error {
	return c.broadcast(ctx, peers, func(ctx context.Context, pr Peer) error {
		url := fmt.Sprintf("%s/tx/submit", fmt.Sprintf(baseURL, pr.Host))
		return c.send(ctx, http.MethodPost, url, tx, nil)
	})
}

// =============================================================================

func (c *Client) broadcast(ctx context.Context, peers []Peer, fn func(ctx context.Context, pr Peer) error) error {
	var g errgroup.Group

	for _, pr := range peers {
		g.Go(func() error {
			if err := fn(ctx, pr); err != nil {
				return fmt.Errorf("%s: %w", pr.Host, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// send is a helper function to send an HTTP request to a node.
func (c *Client) send(ctx context.Context, method string, url string, dataSend any, dataRecv any) error {
	c.limiter.Take()

	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HostHeader, c.host)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return errors.New(string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
