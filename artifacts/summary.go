package artifacts

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/merkle"
	"github.com/usdp-protocol/erde/validation"
)

// topRecipientCount bounds the leaderboard in the summary report.
const topRecipientCount = 10

// WriteSummary persists the human-readable epoch report.
func (w *Writer) WriteSummary(dist *merkle.RewardDistribution, result *validation.Result) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Epoch %d reward distribution\n", dist.Epoch)
	fmt.Fprintf(&b, "Generated: %s\n\n", dist.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Merkle root:    %#x\n", dist.MerkleRoot)
	fmt.Fprintf(&b, "Recipients:     %s\n", humanize.Comma(int64(result.Summary.RecipientCount)))
	fmt.Fprintf(&b, "Total rewards:  %s\n", humanize.BigComma(result.Summary.TotalRewards))
	fmt.Fprintf(&b, "Weekly budget:  %s\n", humanize.BigComma(result.Summary.WeeklyBudget))
	fmt.Fprintf(&b, "Utilization:    %.4f%%\n\n", result.Summary.Utilization*100)

	if len(result.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(&b, "  - %s\n", warning)
		}
		b.WriteString("\n")
	}

	top := make([]*topEntry, 0, len(dist.Recipients))
	for _, r := range dist.Recipients {
		top = append(top, &topEntry{address: r.Address.Hex(), amount: r.TotalReward.String(), cmp: r.TotalReward})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].cmp.Cmp(top[j].cmp) > 0
	})
	if len(top) > topRecipientCount {
		top = top[:topRecipientCount]
	}
	fmt.Fprintf(&b, "Top %d recipients:\n", len(top))
	for i, entry := range top {
		fmt.Fprintf(&b, "  %2d. %s  %s\n", i+1, entry.address, entry.amount)
	}

	path, err := w.path(w.cfg.SummaryFileName)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", errors.Wrapf(err, "could not write %s", path)
	}
	return path, nil
}

type topEntry struct {
	address string
	amount  string
	cmp     *big.Int
}
