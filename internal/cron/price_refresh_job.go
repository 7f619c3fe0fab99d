package cron

import (
	"context"
	"fmt"

	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

type priceRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// NewPriceRefreshJob recomputes the price comparison of every active product
// so deal listings stay current between product page visits.
func NewPriceRefreshJob(logg *logger.Logger, refresher priceRefresher) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("price refresher required")
	}
	return &priceRefreshJob{logg: logg, refresher: refresher}, nil
}

type priceRefreshJob struct {
	logg      *logger.Logger
	refresher priceRefresher
}

func (j *priceRefreshJob) Name() string { return "price-comparison-refresh" }

func (j *priceRefreshJob) Run(ctx context.Context) error {
	n, err := j.refresher.RefreshAll(ctx)
	j.logg.Info(j.logg.WithField(ctx, "refreshed", n), "cron.prices_refreshed")
	return err
}
