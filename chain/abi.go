package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the read surface and the single write. The
// on-chain contracts expose far more; only these entry points are consumed.
const (
	vaultABIJSON = `[{"type":"function","name":"debtOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

	erc20ABIJSON = `[{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

	emissionManagerABIJSON = `[{"type":"function","name":"getWeeklyBudget","stateMutability":"view","inputs":[{"name":"epoch","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}]`

	distributorABIJSON = `[{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},{"type":"function","name":"merkleRoots","stateMutability":"view","inputs":[{"name":"epoch","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},{"type":"function","name":"setMerkleRoot","stateMutability":"nonpayable","inputs":[{"name":"root","type":"bytes32"},{"name":"epoch","type":"uint256"}],"outputs":[]}]`
)

var (
	vaultABI           = mustParseABI(vaultABIJSON)
	erc20ABI           = mustParseABI(erc20ABIJSON)
	emissionManagerABI = mustParseABI(emissionManagerABIJSON)
	distributorABI     = mustParseABI(distributorABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
