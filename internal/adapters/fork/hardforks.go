package fork

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"

	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed hardforks.yaml
var defaultHardforks []byte

// HardforkTable maps ecosystem and network to hardforks sorted by activation block.
type HardforkTable map[string]map[string][]domain.Hardfork

// LoadHardforkTable parses a YAML hardfork table.
func LoadHardforkTable(data []byte) (HardforkTable, error) {
	var table HardforkTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse hardfork table: %w", err)
	}
	for _, networks := range table {
		for _, forks := range networks {
			slices.SortStableFunc(forks, func(a, b domain.Hardfork) int {
				switch {
				case a.Block < b.Block:
					return -1
				case a.Block > b.Block:
					return 1
				}
				return 0
			})
		}
	}
	return table, nil
}

// DefaultHardforkTable returns the embedded table.
func DefaultHardforkTable() HardforkTable {
	table, err := LoadHardforkTable(defaultHardforks)
	if err != nil {
		panic(err)
	}
	return table
}

// Lookup returns the hardfork active at block: the last entry activated at
// or before it. Unknown networks and blocks before the first entry return false.
func (t HardforkTable) Lookup(ecosystem, network string, block uint64) (string, bool) {
	forks := t[ecosystem][network]
	i := sort.Search(len(forks), func(i int) bool { return forks[i].Block > block })
	if i == 0 {
		return "", false
	}
	return forks[i-1].Name, true
}
