package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/portfolio"
)

// LoadSnapshots reads a YAML or JSON list of asset snapshots
func LoadSnapshots(path string) ([]factors.AssetSnapshot, error) {
	var snapshots []factors.AssetSnapshot
	if err := decodeFile(path, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// LoadHoldings reads a YAML or JSON list of current portfolio holdings
func LoadHoldings(path string) ([]portfolio.Holding, error) {
	var holdings []portfolio.Holding
	if err := decodeFile(path, &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

func decodeFile(path string, out interface{}) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if ext == ".json" {
		err = json.Unmarshal(data, out)
	} else {
		err = yaml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
