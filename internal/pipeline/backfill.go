package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-committee/internal/external/fred"
	"github.com/wonny/aegis-committee/internal/external/yahoo"
	"github.com/wonny/aegis-committee/internal/s3_store"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// backfillLookback covers weekends and holidays before a stored date
const backfillLookback = 7

// CloseSource returns historical daily closes
type CloseSource interface {
	CloseOnOrBefore(ctx context.Context, symbol string, asOf time.Time, lookback int) (float64, error)
}

// ObservationSource returns historical series observations
type ObservationSource interface {
	ObservationOnOrBefore(ctx context.Context, seriesID string, asOf time.Time) (float64, error)
}

// BackfillRow is the outcome for one stored date
type BackfillRow struct {
	Date    string                  `json:"date"`
	Values  s3_store.BackfillValues `json:"values"`
	Missing []string                `json:"missing,omitempty"`
	Updated bool                    `json:"updated"`
}

// BackfillSummary is the outcome of one backfill pass
type BackfillSummary struct {
	Candidates int           `json:"candidates"`
	Updated    int           `json:"updated"`
	DryRun     bool          `json:"dry_run"`
	Rows       []BackfillRow `json:"rows"`
}

// Backfiller fills daily_macro columns added after rows were first written,
// using the value each source reported on or before the row's date.
type Backfiller struct {
	store  *s3_store.Store
	closes CloseSource
	series ObservationSource
	logger *logger.Logger
}

// NewBackfiller creates a backfiller. A nil source leaves its columns untouched.
func NewBackfiller(store *s3_store.Store, closes CloseSource, series ObservationSource, log *logger.Logger) *Backfiller {
	return &Backfiller{
		store:  store,
		closes: closes,
		series: series,
		logger: log.WithComponent("backfill"),
	}
}

// Run backfills up to limit dates (limit <= 0: all). A per-date fetch failure
// leaves that column as it is; only listing candidates can fail the pass.
func (b *Backfiller) Run(ctx context.Context, limit int, dryRun bool) (*BackfillSummary, error) {
	dates, err := b.store.BackfillCandidates(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &BackfillSummary{Candidates: len(dates), DryRun: dryRun}
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		row, err := b.fetch(ctx, date)
		if err != nil {
			b.logger.WithError(err).WithField("date", date).Warn("Skipping backfill date")
			continue
		}
		if !dryRun && row.hasValues() {
			row.Updated = b.store.SafeUpdateBackfill(ctx, date, row.Values)
			if row.Updated {
				summary.Updated++
			}
		}
		summary.Rows = append(summary.Rows, row)
	}

	b.logger.WithFields(map[string]interface{}{
		"candidates": summary.Candidates,
		"updated":    summary.Updated,
		"dry_run":    dryRun,
	}).Info("Backfill completed")
	return summary, nil
}

func (b *Backfiller) fetch(ctx context.Context, date string) (BackfillRow, error) {
	asOf, err := time.Parse(s3_store.DateLayout, date)
	if err != nil {
		return BackfillRow{}, fmt.Errorf("invalid stored date %q: %w", date, err)
	}

	row := BackfillRow{Date: date}
	v := &row.Values

	closeOf := func(name, symbol string) *float64 {
		if b.closes == nil {
			row.Missing = append(row.Missing, name)
			return nil
		}
		x, err := b.closes.CloseOnOrBefore(ctx, symbol, asOf, backfillLookback)
		if err != nil {
			row.Missing = append(row.Missing, name)
			return nil
		}
		return &x
	}
	observation := func(name, seriesID string) *float64 {
		if b.series == nil {
			row.Missing = append(row.Missing, name)
			return nil
		}
		x, err := b.series.ObservationOnOrBefore(ctx, seriesID, asOf)
		if err != nil {
			row.Missing = append(row.Missing, name)
			return nil
		}
		return &x
	}

	vix := closeOf("vix", yahoo.SymbolVIX)
	v.VIX3M = closeOf("vix3m", yahoo.SymbolVIX3M)
	if vix != nil && v.VIX3M != nil {
		spread := *v.VIX3M - *vix
		v.VIXTermSpread = &spread
	}
	v.HYOAS = observation("hy_oas", fred.SeriesHYOAS)
	v.IGOAS = observation("ig_oas", fred.SeriesIGOAS)
	v.FedBalanceSheet = observation("fed_balance_sheet", fred.SeriesFedBalance)

	return row, nil
}

func (r BackfillRow) hasValues() bool {
	v := r.Values
	return v.VIX3M != nil || v.VIXTermSpread != nil || v.HYOAS != nil || v.IGOAS != nil || v.FedBalanceSheet != nil
}
