// Package infra contains infrastructure adapters for the pool context.
package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/solkite/triarb/business/pool/domain"
)

// FileSource loads raw pool records from a JSON file holding an array of
// free-form attribute bags.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the pool file.
func (s *FileSource) Load(ctx context.Context) ([]domain.RawPool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("pool file %s: %w", s.path, err)
	}

	var raws []domain.RawPool
	if err := json.Unmarshal(data, &raws); err != nil {
		// Some dumps wrap the array in an envelope.
		var envelope struct {
			Pools []domain.RawPool `json:"pools"`
			Data  []domain.RawPool `json:"data"`
		}
		if err2 := json.Unmarshal(data, &envelope); err2 != nil {
			return nil, fmt.Errorf("pool file %s: %w", s.path, err)
		}
		raws = envelope.Pools
		if len(raws) == 0 {
			raws = envelope.Data
		}
	}
	return raws, nil
}
