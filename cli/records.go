package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/modelcheck/rules"
)

// LoadRecords reads a flattened record dump from disk. The format is
// chosen by extension: .yaml/.yml decode as YAML, everything else as JSON.
// The file must hold a list of objects; each object becomes one record.
func LoadRecords(path string) ([]rules.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}

	var raw []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse YAML records: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse JSON records: %w", err)
		}
	}

	records := make([]rules.Record, 0, len(raw))
	for _, m := range raw {
		records = append(records, rules.Record(m))
	}
	return records, nil
}
