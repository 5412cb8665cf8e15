// Package artifacts persists every intermediate pipeline product under the
// configured output directory so a failed epoch can be audited post-mortem.
// Big integers always serialize as decimal strings; pool columns always follow
// the configured pool list order, never map iteration order.
package artifacts

import (
	"encoding/csv"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/usdp-protocol/erde/allocation"
	"github.com/usdp-protocol/erde/config"
	"github.com/usdp-protocol/erde/snapshot"
	"github.com/usdp-protocol/erde/weights"
)

// weightDecimals fixes the printed precision of fractional weights.
const weightDecimals = 18

// Writer persists epoch artifacts.
type Writer struct {
	cfg config.Config
}

// NewWriter returns a writer rooted at the configured output directory.
func NewWriter(cfg config.Config) *Writer {
	return &Writer{cfg: cfg}
}

func (w *Writer) path(name string) (string, error) {
	if err := os.MkdirAll(w.cfg.OutputDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "could not create output directory %s", w.cfg.OutputDir)
	}
	return filepath.Join(w.cfg.OutputDir, name), nil
}

func (w *Writer) writeCSV(name string, rows [][]string) (string, error) {
	path, err := w.path(name)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not create %s", path)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).WithField("path", path).Error("Could not close artifact file")
		}
	}()
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return "", errors.Wrapf(err, "could not write %s", path)
	}
	cw.Flush()
	return path, cw.Error()
}

// WriteSnapshot persists one row per user with the epoch's pinned amounts.
func (w *Writer) WriteSnapshot(snap *snapshot.EpochSnapshot) (string, error) {
	header := []string{"Address", "Debt", "Stability Pool Shares"}
	for i, pool := range snap.Pools {
		header = append(header, fmt.Sprintf("LP Pool %d (%s)", i+1, pool.Hex()))
	}
	header = append(header, "Timestamp")

	rows := [][]string{header}
	for _, u := range snap.Users {
		row := []string{u.Address.Hex(), u.Debt.String(), u.SPShares.String()}
		for _, pool := range snap.Pools {
			shares := u.LPShares[pool]
			if shares == nil {
				shares = new(big.Int)
			}
			row = append(row, shares.String())
		}
		row = append(row, u.Timestamp.Format(time.RFC3339))
		rows = append(rows, row)
	}
	return w.writeCSV(w.cfg.SnapshotFileName, rows)
}

// WriteWeights persists per-user channel weights at 18 decimal places.
func (w *Writer) WriteWeights(snap *snapshot.EpochSnapshot, userWeights []*weights.UserWeight) (string, error) {
	header := []string{"Address", "Debt Weight", "Stability Pool Weight"}
	for i, pool := range snap.Pools {
		header = append(header, fmt.Sprintf("LP Pool %d Weight (%s)", i+1, pool.Hex()))
	}

	rows := [][]string{header}
	for _, uw := range userWeights {
		row := []string{
			uw.Address.Hex(),
			uw.DebtWeight.FloatString(weightDecimals),
			uw.SPWeight.FloatString(weightDecimals),
		}
		for _, pool := range snap.Pools {
			row = append(row, uw.LPWeights[pool].FloatString(weightDecimals))
		}
		rows = append(rows, row)
	}
	return w.writeCSV(w.cfg.WeightsFileName, rows)
}

// WriteRewards persists the per-recipient breakdown plus proof length.
func (w *Writer) WriteRewards(rewards []*allocation.UserReward, pools []common.Address) (string, error) {
	header := []string{"Address", "Total Reward", "Debt Reward", "Stability Pool Reward", "Eco Reward"}
	for i, pool := range pools {
		header = append(header, fmt.Sprintf("LP Pool %d Reward (%s)", i+1, pool.Hex()))
	}
	header = append(header, "Proof Length")

	rows := [][]string{header}
	for _, r := range rewards {
		row := []string{
			r.Address.Hex(),
			r.TotalReward.String(),
			r.DebtReward.String(),
			r.SPReward.String(),
			r.EcoReward.String(),
		}
		for _, pool := range pools {
			amount := r.LPRewards[pool]
			if amount == nil {
				amount = new(big.Int)
			}
			row = append(row, amount.String())
		}
		row = append(row, fmt.Sprintf("%d", len(r.Proof)))
		rows = append(rows, row)
	}
	return w.writeCSV(w.cfg.RewardsFileName, rows)
}
