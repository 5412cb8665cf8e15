// Package submit writes the epoch's merkle root to the reward distributor.
// This is the only writer in the whole pipeline; everything before it is
// read-only. The submitter pre-checks ownership and idempotence, submits,
// waits for one confirmation, and re-reads the root to verify its own write.
package submit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/merkle"
)

// Distributor is the contract surface the submitter needs.
type Distributor interface {
	Owner(ctx context.Context) (common.Address, error)
	MerkleRoot(ctx context.Context, epoch *big.Int) ([32]byte, error)
	SetMerkleRoot(opts *bind.TransactOpts, root [32]byte, epoch *big.Int) (*gethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error)
}

// ErrNotOwner is returned when the signer does not own the distributor.
var ErrNotOwner = errors.New("signer is not the reward distributor owner")

// RootConflictError is returned when the epoch already has a differing
// non-zero root on chain and ForceUpdate is not set.
type RootConflictError struct {
	Epoch    uint64
	Existing [32]byte
	Proposed [32]byte
}

func (e *RootConflictError) Error() string {
	return fmt.Sprintf("epoch %d already has root %#x on chain, refusing to overwrite with %#x without force-update",
		e.Epoch, e.Existing, e.Proposed)
}

// Receipt reports the outcome of a submission. Submitted is false when the
// root was already on chain and no transaction was issued.
type Receipt struct {
	TxHash    common.Hash
	Submitted bool
}

// Submitter holds the signing capability for the single write.
type Submitter struct {
	distributor Distributor
	opts        *bind.TransactOpts
	signer      common.Address
	force       bool
}

// NewSubmitter builds a submitter from a hex-encoded private key. chainID
// pins the EIP-155 signer.
func NewSubmitter(distributor Distributor, privKeyHex string, chainID *big.Int, force bool) (*Submitter, error) {
	key, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid admin private key")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "could not build transactor")
	}
	return &Submitter{
		distributor: distributor,
		opts:        opts,
		signer:      crypto.PubkeyToAddress(key.PublicKey),
		force:       force,
	}, nil
}

// newSubmitterWithOpts is used by tests to bypass key handling.
func newSubmitterWithOpts(distributor Distributor, opts *bind.TransactOpts, signer common.Address, force bool) *Submitter {
	return &Submitter{distributor: distributor, opts: opts, signer: signer, force: force}
}

// Submit commits the distribution's root for its epoch.
func (s *Submitter) Submit(ctx context.Context, dist *merkle.RewardDistribution) (*Receipt, error) {
	owner, err := s.distributor.Owner(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not read distributor owner")
	}
	if owner != s.signer {
		return nil, errors.Wrapf(ErrNotOwner, "owner %s, signer %s", owner.Hex(), s.signer.Hex())
	}

	epoch := new(big.Int).SetUint64(dist.Epoch)
	existing, err := s.distributor.MerkleRoot(ctx, epoch)
	if err != nil {
		return nil, errors.Wrap(err, "could not read existing on-chain root")
	}
	if existing == dist.MerkleRoot {
		log.WithField("epoch", dist.Epoch).Info("Root already on chain, nothing to submit")
		return &Receipt{Submitted: false}, nil
	}
	if existing != ([32]byte{}) && !s.force {
		return nil, &RootConflictError{Epoch: dist.Epoch, Existing: existing, Proposed: dist.MerkleRoot}
	}

	opts := *s.opts
	opts.Context = ctx
	tx, err := s.distributor.SetMerkleRoot(&opts, dist.MerkleRoot, epoch)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"epoch": dist.Epoch,
		"root":  fmt.Sprintf("%#x", dist.MerkleRoot),
		"tx":    tx.Hash().Hex(),
	}).Info("Submitted merkle root, awaiting confirmation")

	if _, err := s.distributor.WaitMined(ctx, tx); err != nil {
		return nil, err
	}

	// Verify our own write. A mismatch here means a reorg or contract logic
	// divergence; blind retries would make it worse.
	confirmed, err := s.distributor.MerkleRoot(ctx, epoch)
	if err != nil {
		return nil, errors.Wrap(err, "could not re-read root after submission")
	}
	if confirmed != dist.MerkleRoot {
		return nil, errors.Errorf("post-write verification failed for epoch %d: on-chain root %#x, submitted %#x; manual investigation required",
			dist.Epoch, confirmed, dist.MerkleRoot)
	}

	rootsSubmitted.Inc()
	log.WithField("tx", tx.Hash().Hex()).Info("Merkle root confirmed on chain")
	return &Receipt{TxHash: tx.Hash(), Submitted: true}, nil
}
