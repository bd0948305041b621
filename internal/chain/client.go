package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single RPC round-trip.
const DefaultTimeout = 15 * time.Second

// Client wraps a JSON-RPC connection to a full node and exposes the reads the
// engine needs. Every call is a single attempt; callers retry on their own cycle.
type Client struct {
	rpcClient *rpc.Client
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return newClient(rpcClient, timeout, logger), nil
}

func newClient(rpcClient *rpc.Client, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rpcClient: rpcClient, timeout: timeout, logger: logger}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.rpcClient.CallContext(ctx, result, method, args...)
	c.logger.Debug("rpc call", zap.String("method", method), zap.Duration("took", time.Since(start)), zap.Error(err))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// ChainIdentifier returns the chain identifier of the node.
func (c *Client) ChainIdentifier(ctx context.Context) (string, error) {
	var id string
	err := c.call(ctx, &id, "sui_getChainIdentifier")
	return id, err
}

// WaitReady polls the node until it answers or maxElapsed passes.
func (c *Client) WaitReady(ctx context.Context, maxElapsed time.Duration) (string, error) {
	op := func() (string, error) {
		return c.ChainIdentifier(ctx)
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("rpc not ready", zap.Error(err), zap.Duration("retry_in", next))
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(notify),
	)
}

// GetObject returns an object with its type and content.
func (c *Client) GetObject(ctx context.Context, id string) (ObjectResponse, error) {
	var resp ObjectResponse
	err := c.call(ctx, &resp, "sui_getObject", id, ObjectOptions{ShowType: true, ShowContent: true})
	return resp, err
}

// QueryEvents returns one page of events matching filter, oldest first.
func (c *Client) QueryEvents(ctx context.Context, filter EventFilter, cursor *EventID, limit int) (EventPage, error) {
	var page EventPage
	err := c.call(ctx, &page, "suix_queryEvents", filter, cursor, limit, false)
	return page, err
}

// GetOwnedObjects returns one page of objects owned by owner.
func (c *Client) GetOwnedObjects(ctx context.Context, owner string, query OwnedObjectsQuery, cursor *string, limit int) (ObjectPage, error) {
	var page ObjectPage
	err := c.call(ctx, &page, "suix_getOwnedObjects", owner, query, cursor, limit)
	return page, err
}

// GetCoinMetadata returns metadata for a coin type, or nil when none is published.
func (c *Client) GetCoinMetadata(ctx context.Context, coinType string) (*CoinMetadata, error) {
	var meta *CoinMetadata
	if err := c.call(ctx, &meta, "suix_getCoinMetadata", coinType); err != nil {
		return nil, err
	}
	return meta, nil
}
