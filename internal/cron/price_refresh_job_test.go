package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

type countingRefresher struct {
	n   int
	err error
}

func (c *countingRefresher) RefreshAll(context.Context) (int, error) { return c.n, c.err }

func TestPriceRefreshJob(t *testing.T) {
	job, err := NewPriceRefreshJob(logger.Nop(), &countingRefresher{n: 4})
	if err != nil {
		t.Fatalf("NewPriceRefreshJob: %v", err)
	}
	if job.Name() != "price-comparison-refresh" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	failing, _ := NewPriceRefreshJob(logger.Nop(), &countingRefresher{n: 1, err: errors.New("db gone")})
	if err := failing.Run(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
}
