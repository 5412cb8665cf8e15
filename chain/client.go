// Package chain implements the typed read surface over the protocol's
// on-chain contracts and the distributor write binding. Every read inside a
// snapshot is pinned to an explicit block tag; the package never substitutes
// "latest" on a caller's behalf.
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/config"
)

// caller is the subset of the ethclient used by the read path.
type caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// UserSnapshot captures one user's positions pinned at a single block.
type UserSnapshot struct {
	Address   common.Address
	Debt      *big.Int
	LPShares  map[common.Address]*big.Int
	SPShares  *big.Int
	Timestamp time.Time
}

// Client reads protocol state through a shared RPC connection.
type Client struct {
	caller caller
	eth    *ethclient.Client
	cfg    config.Config
}

// NewClient dials the configured endpoint. The connection is shared read-only
// across the pipeline; the submitter reuses it for its single write.
func NewClient(ctx context.Context, cfg config.Config) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "could not dial rpc endpoint %s", cfg.RPCURL)
	}
	log.WithField("endpoint", cfg.RPCURL).Info("Connected to execution client")
	return &Client{caller: ec, eth: ec, cfg: cfg}, nil
}

// newClientWithCaller is used by tests to substitute the transport.
func newClientWithCaller(c caller, cfg config.Config) *Client {
	return &Client{caller: c, cfg: cfg}
}

// Close tears down the underlying RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// Eth exposes the raw client for the distributor write binding.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// FetchCurrentBlock returns the head block number in one round trip.
func (c *Client) FetchCurrentBlock(ctx context.Context) (uint64, error) {
	var number uint64
	err := withRetry(ctx, "blockNumber", func(ctx context.Context) error {
		n, err := c.caller.BlockNumber(ctx)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	return number, err
}

// FetchUserSnapshot reads the user's debt, stability pool balance and one
// balance per configured LP token, all pinned to blockTag. The LP map is keyed
// by pool address; iteration order downstream always follows the configured
// pool list, never the map.
func (c *Client) FetchUserSnapshot(ctx context.Context, user common.Address, blockTag *big.Int) (*UserSnapshot, error) {
	if blockTag == nil {
		return nil, errors.New("block tag is required for snapshot reads")
	}
	if user == (common.Address{}) {
		return nil, errors.New("zero address is not a valid user")
	}

	debt, err := c.readUint256(ctx, "vault.debtOf", c.cfg.VaultAddress, vaultABI, "debtOf", blockTag, user)
	if err != nil {
		return nil, err
	}
	spShares, err := c.readUint256(ctx, "stabilityPool.balanceOf", c.cfg.StabilityPoolAddress, erc20ABI, "balanceOf", blockTag, user)
	if err != nil {
		return nil, err
	}
	lpShares := make(map[common.Address]*big.Int, len(c.cfg.LPTokenAddresses))
	for _, pool := range c.cfg.LPTokenAddresses {
		bal, err := c.readUint256(ctx, "lpToken.balanceOf", pool, erc20ABI, "balanceOf", blockTag, user)
		if err != nil {
			return nil, err
		}
		lpShares[pool] = bal
	}

	return &UserSnapshot{
		Address:   user,
		Debt:      debt,
		LPShares:  lpShares,
		SPShares:  spShares,
		Timestamp: time.Now().UTC(),
	}, nil
}

// FetchWeeklyBudget reads E(w) from the emission manager. The contract is the
// sole source of truth; no local schedule computation happens here.
func (c *Client) FetchWeeklyBudget(ctx context.Context, epoch uint64) (*big.Int, error) {
	return c.readUint256(ctx, "emissionManager.getWeeklyBudget",
		c.cfg.EmissionManagerAddress, emissionManagerABI, "getWeeklyBudget", nil, new(big.Int).SetUint64(epoch))
}

// ReadOnChainRoot returns the merkle root currently recorded for the epoch,
// or the zero hash when none has been set.
func (c *Client) ReadOnChainRoot(ctx context.Context, epoch uint64) ([32]byte, error) {
	var root [32]byte
	err := withRetry(ctx, "distributor.merkleRoots", func(ctx context.Context) error {
		out, err := c.call(ctx, c.cfg.RewardDistributorAddress, distributorABI, "merkleRoots", nil, new(big.Int).SetUint64(epoch))
		if err != nil {
			return err
		}
		decoded, err := distributorABI.Unpack("merkleRoots", out)
		if err != nil {
			return permanent(errors.Wrap(err, "could not decode merkleRoots result"))
		}
		root = *abi.ConvertType(decoded[0], new([32]byte)).(*[32]byte)
		return nil
	})
	return root, err
}

func (c *Client) readUint256(ctx context.Context, op string, to common.Address, contractABI abi.ABI, method string, blockTag *big.Int, args ...interface{}) (*big.Int, error) {
	var value *big.Int
	err := withRetry(ctx, op, func(ctx context.Context) error {
		out, err := c.call(ctx, to, contractABI, method, blockTag, args...)
		if err != nil {
			return err
		}
		decoded, err := contractABI.Unpack(method, out)
		if err != nil {
			return permanent(errors.Wrapf(err, "could not decode %s result", op))
		}
		value = *abi.ConvertType(decoded[0], new(*big.Int)).(**big.Int)
		if value.Sign() < 0 {
			return permanent(errors.Errorf("%s returned a negative amount", op))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, blockTag *big.Int, args ...interface{}) ([]byte, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, permanent(errors.Wrapf(err, "could not pack %s call", method))
	}
	start := time.Now()
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, blockTag)
	rpcLatency.Observe(float64(time.Since(start).Milliseconds()))
	return out, err
}
