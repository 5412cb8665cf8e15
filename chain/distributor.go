package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// Distributor wraps the reward distributor contract for the submitter. It is
// the only binding in the repository with a write entry point.
type Distributor struct {
	contract *bind.BoundContract
	client   *ethclient.Client
	addr     common.Address
}

// NewDistributor binds the reward distributor at addr over the shared client.
func NewDistributor(client *ethclient.Client, addr common.Address) *Distributor {
	return &Distributor{
		contract: bind.NewBoundContract(addr, distributorABI, client, client, client),
		client:   client,
		addr:     addr,
	}
}

// Owner returns the distributor's owner address.
func (d *Distributor) Owner(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, "owner"); err != nil {
		return common.Address{}, errors.Wrap(err, "could not read distributor owner")
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// MerkleRoot returns the root recorded for the epoch, zero when unset.
func (d *Distributor) MerkleRoot(ctx context.Context, epoch *big.Int) ([32]byte, error) {
	var out []interface{}
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, "merkleRoots", epoch); err != nil {
		return [32]byte{}, errors.Wrap(err, "could not read on-chain merkle root")
	}
	return *abi.ConvertType(out[0], new([32]byte)).(*[32]byte), nil
}

// SetMerkleRoot submits the root for the epoch. Owner-only on-chain.
func (d *Distributor) SetMerkleRoot(opts *bind.TransactOpts, root [32]byte, epoch *big.Int) (*gethtypes.Transaction, error) {
	tx, err := d.contract.Transact(opts, "setMerkleRoot", root, epoch)
	if err != nil {
		return nil, errors.Wrap(err, "could not submit setMerkleRoot")
	}
	return tx, nil
}

// WaitMined blocks until the transaction is confirmed and checks its status.
func (d *Distributor) WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, d.client, tx)
	if err != nil {
		return nil, errors.Wrap(err, "error awaiting transaction confirmation")
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return receipt, errors.Errorf("setMerkleRoot transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}
