package artifacts

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/merkle"
)

// merkleDocument is the canonical distribution artifact. Every big integer is
// a decimal string so precision survives any JSON consumer.
type merkleDocument struct {
	Epoch          uint64                    `json:"epoch"`
	MerkleRoot     string                    `json:"merkleRoot"`
	TotalRewards   string                    `json:"totalRewards"`
	WeeklyBudget   string                    `json:"weeklyBudget"`
	Timestamp      int64                     `json:"timestamp"`
	RecipientCount int                       `json:"recipientCount"`
	Recipients     []merkleDocumentRecipient `json:"recipients"`
}

type merkleDocumentRecipient struct {
	Address             string            `json:"address"`
	TotalReward         string            `json:"totalReward"`
	DebtReward          string            `json:"debtReward"`
	LPRewards           map[string]string `json:"lpRewards"`
	StabilityPoolReward string            `json:"stabilityPoolReward"`
	EcoReward           string            `json:"ecoReward"`
	Proof               []string          `json:"proof"`
}

// WriteMerkle persists the canonical distribution document.
func (w *Writer) WriteMerkle(dist *merkle.RewardDistribution) (string, error) {
	doc := merkleDocument{
		Epoch:          dist.Epoch,
		MerkleRoot:     fmt.Sprintf("%#x", dist.MerkleRoot),
		TotalRewards:   dist.TotalRewards.String(),
		WeeklyBudget:   dist.WeeklyBudget.String(),
		Timestamp:      dist.Timestamp.Unix(),
		RecipientCount: len(dist.Recipients),
		Recipients:     make([]merkleDocumentRecipient, 0, len(dist.Recipients)),
	}
	for _, r := range dist.Recipients {
		rec := merkleDocumentRecipient{
			Address:             r.Address.Hex(),
			TotalReward:         r.TotalReward.String(),
			DebtReward:          r.DebtReward.String(),
			StabilityPoolReward: r.SPReward.String(),
			EcoReward:           r.EcoReward.String(),
			LPRewards:           make(map[string]string, len(r.LPRewards)),
			Proof:               make([]string, len(r.Proof)),
		}
		for pool, amount := range r.LPRewards {
			if amount == nil {
				amount = new(big.Int)
			}
			rec.LPRewards[pool.Hex()] = amount.String()
		}
		for i, p := range r.Proof {
			rec.Proof[i] = fmt.Sprintf("%#x", p)
		}
		doc.Recipients = append(doc.Recipients, rec)
	}

	path, err := w.path(w.cfg.MerkleFileName)
	if err != nil {
		return "", err
	}
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "could not serialize merkle document")
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", errors.Wrapf(err, "could not write %s", path)
	}
	return path, nil
}
