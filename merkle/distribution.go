package merkle

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/usdp-protocol/erde/allocation"
)

// MaxRecipients bounds a distribution to 2^20 leaves.
const MaxRecipients = 1 << 20

// PolicyError reports malformed allocator output: bad inputs or config, not a
// transient condition. Never retried.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("distribution policy violation: %s", e.Reason)
}

// IntegrityError reports a failed internal round-trip. Always a logic bug.
type IntegrityError struct {
	Check string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("merkle integrity check failed: %s", e.Check)
}

// RewardDistribution is the epoch's final artifact: the root plus every
// recipient with its proof. The timestamp is diagnostic only and excluded
// from the root.
type RewardDistribution struct {
	Epoch        uint64
	MerkleRoot   [32]byte
	TotalRewards *big.Int
	Recipients   []*allocation.UserReward
	WeeklyBudget *big.Int
	Timestamp    time.Time
}

// BuildDistribution canonicalizes the allocator output into leaves, builds
// the tree, attaches a proof to every recipient, and round-trips each proof
// against the produced root before returning.
func BuildDistribution(epoch uint64, rewards []*allocation.UserReward, weeklyBudget *big.Int, timestamp time.Time) (*RewardDistribution, error) {
	if len(rewards) == 0 {
		return nil, &PolicyError{Reason: "no recipients"}
	}
	if len(rewards) > MaxRecipients {
		return nil, &PolicyError{Reason: fmt.Sprintf("recipient count %d exceeds the %d capacity", len(rewards), MaxRecipients)}
	}

	seen := make(map[common.Address]bool, len(rewards))
	total := new(big.Int)
	leaves := make([][32]byte, len(rewards))
	for i, r := range rewards {
		if r.Address == (common.Address{}) {
			return nil, &PolicyError{Reason: "recipient with zero address"}
		}
		// common.Address is raw bytes, so equality here is exactly the
		// case-insensitive uniqueness the distribution requires.
		if seen[r.Address] {
			return nil, &PolicyError{Reason: fmt.Sprintf("duplicate recipient address %s", r.Address.Hex())}
		}
		seen[r.Address] = true
		if r.TotalReward.Sign() < 0 {
			return nil, &PolicyError{Reason: fmt.Sprintf("negative reward for %s", r.Address.Hex())}
		}
		total.Add(total, r.TotalReward)
		leaves[i] = LeafHash(r.Address, r.TotalReward)
	}
	if total.Cmp(weeklyBudget) > 0 {
		return nil, &PolicyError{Reason: fmt.Sprintf("total rewards %s exceed weekly budget %s", total.String(), weeklyBudget.String())}
	}

	tree, err := NewTree(leaves)
	if err != nil {
		return nil, err
	}
	root := tree.Root()

	for i, r := range rewards {
		proof, err := tree.Proof(leaves[i])
		if err != nil {
			return nil, &IntegrityError{Check: err.Error()}
		}
		if !Verify(root, leaves[i], proof) {
			return nil, &IntegrityError{Check: fmt.Sprintf("proof round-trip failed for %s", r.Address.Hex())}
		}
		r.Proof = proof
	}

	log.WithFields(map[string]interface{}{
		"epoch":      epoch,
		"root":       fmt.Sprintf("%#x", root),
		"recipients": len(rewards),
		"total":      total.String(),
	}).Info("Built reward distribution")

	return &RewardDistribution{
		Epoch:        epoch,
		MerkleRoot:   root,
		TotalRewards: total,
		Recipients:   rewards,
		WeeklyBudget: new(big.Int).Set(weeklyBudget),
		Timestamp:    timestamp,
	}, nil
}
