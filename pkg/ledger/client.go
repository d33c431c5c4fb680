// Package ledger queries reward-token Transfer events from the chain that
// settles retrieval rewards, with failover across JSON-RPC endpoints.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrRangeUnsupported marks a provider rejection of a block range that starts
// before the provider's retention window. Callers may retry once with a range
// narrowed to MaxLookback blocks; any other query error is final for the run.
var ErrRangeUnsupported = errors.New("ledger: block range outside provider retention")

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// TransferEvent is one observed reward transfer.
type TransferEvent struct {
	Recipient   string
	Amount      float64
	BlockNumber uint64
}

// Client speaks to one or more JSON-RPC endpoints in order, falling through to
// the next on transport failure.
type Client struct {
	logger      *zap.Logger
	clients     []*ethclient.Client
	endpoints   []string
	token       common.Address
	decimals    int
	maxLookback uint64
}

// Opts is the set of options for a new Client.
type Opts struct {
	Endpoints   []string
	Token       string
	Decimals    int
	MaxLookback uint64
	DialTimeout time.Duration
}

// New dials every configured endpoint and keeps the ones that answer.
func New(ctx context.Context, logger *zap.Logger, o Opts) (*Client, error) {
	if o.Decimals <= 0 {
		o.Decimals = 18
	}
	if o.MaxLookback == 0 {
		o.MaxLookback = 2880
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 15 * time.Second
	}

	c := &Client{
		logger:      logger,
		token:       common.HexToAddress(o.Token),
		decimals:    o.Decimals,
		maxLookback: o.MaxLookback,
	}

	for _, ep := range o.Endpoints {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, o.DialTimeout)
		cli, err := ethclient.DialContext(dialCtx, ep)
		cancel()
		if err != nil {
			logger.Warn("Skipping unreachable ledger endpoint", zap.String("endpoint", ep), zap.Error(err))
			continue
		}
		c.clients = append(c.clients, cli)
		c.endpoints = append(c.endpoints, ep)
	}
	if len(c.clients) == 0 {
		return nil, errors.New("ledger: no reachable endpoints")
	}
	return c, nil
}

// MaxLookback is the provider-defined maximum block span for a narrowed retry.
func (c *Client) MaxLookback() uint64 { return c.maxLookback }

// Head returns the current chain head block number.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	var lastErr error
	for i, cli := range c.clients {
		head, err := cli.BlockNumber(ctx)
		if err == nil {
			return head, nil
		}
		lastErr = err
		c.logger.Warn("Head query failed, trying next endpoint",
			zap.String("endpoint", c.endpoints[i]), zap.Error(err))
	}
	return 0, fmt.Errorf("ledger head: %w", lastErr)
}

// TransferEvents returns all reward-token Transfer events between fromBlock
// (inclusive; nil means genesis) and toBlock, in the order the provider emits
// them. A retention rejection surfaces as ErrRangeUnsupported.
func (c *Client) TransferEvents(ctx context.Context, fromBlock *uint64, toBlock uint64) ([]TransferEvent, error) {
	q := ethereum.FilterQuery{
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.token},
		Topics:    [][]common.Hash{{transferTopic}},
	}
	if fromBlock != nil {
		q.FromBlock = new(big.Int).SetUint64(*fromBlock)
	} else {
		q.FromBlock = big.NewInt(0)
	}

	var lastErr error
	for i, cli := range c.clients {
		logs, err := cli.FilterLogs(ctx, q)
		if err == nil {
			events := make([]TransferEvent, 0, len(logs))
			for _, lg := range logs {
				if len(lg.Topics) < 3 {
					continue
				}
				events = append(events, TransferEvent{
					Recipient:   common.BytesToAddress(lg.Topics[2].Bytes()).Hex(),
					Amount:      c.tokenAmount(new(big.Int).SetBytes(lg.Data)),
					BlockNumber: lg.BlockNumber,
				})
			}
			return events, nil
		}
		if isRangeError(err) {
			return nil, fmt.Errorf("%w: %v", ErrRangeUnsupported, err)
		}
		lastErr = err
		c.logger.Warn("Transfer log query failed, trying next endpoint",
			zap.String("endpoint", c.endpoints[i]), zap.Error(err))
	}
	return nil, fmt.Errorf("ledger transfer events: %w", lastErr)
}

// Close releases all endpoint connections.
func (c *Client) Close() {
	for _, cli := range c.clients {
		cli.Close()
	}
}

// tokenAmount converts a raw integer amount to whole tokens.
func (c *Client) tokenAmount(raw *big.Int) float64 {
	f := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.decimals)), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}

// rangeErrorFragments are the messages providers use to reject ranges that
// start before their retention window. Matched case-insensitively.
var rangeErrorFragments = []string{
	"block range",
	"older than",
	"pruned",
	"too many blocks",
	"exceed maximum block range",
}

func isRangeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, frag := range rangeErrorFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
