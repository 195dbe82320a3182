// Package app contains application services and port definitions for the cycle context.
package app

import (
	"context"

	"github.com/solkite/triarb/business/cycle/domain"
)

// SearchReport is everything a reporter needs to render a run.
type SearchReport struct {
	Cycles []*domain.Cycle
	Stats  *domain.Stats
}

// Reporter renders ranked search results.
type Reporter interface {
	Report(ctx context.Context, report *SearchReport) error
}
