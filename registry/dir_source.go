package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/x402-labs/paygate"
)

// DirSource reads requirement documents from a directory of *.json files,
// one document per file. Non-JSON files are ignored.
type DirSource struct {
	// Dir is the directory holding the documents.
	Dir string
}

// List implements Source.
func (s DirSource) List(ctx context.Context) ([]paygate.RequirementDoc, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading config dir %s: %w", s.Dir, err)
	}

	var docs []paygate.RequirementDoc
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", entry.Name(), err)
		}

		var doc paygate.RequirementDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", entry.Name(), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
