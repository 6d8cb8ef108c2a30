package s2_snapshot

import (
	"fmt"
	"strings"

	"github.com/wonny/aegis-committee/internal/contracts"
	"github.com/wonny/aegis-committee/internal/s0_data/collector"
	"github.com/wonny/aegis-committee/internal/s1_signals"
	"github.com/wonny/aegis-committee/internal/s5_validate"
	"github.com/wonny/aegis-committee/pkg/logger"
)

const (
	noteMarketUnavailable = "market_summary_note_unavailable"
	noteFlowUnavailable   = "flow_summary_note_unavailable"
)

// Options carries run inputs that do not come from acquisition
type Options struct {
	Watchlist []string
	// PriorForwardEPS is the stored forward EPS about 3 months before the run (nil: no history)
	PriorForwardEPS *float64
}

// Assembler builds the immutable Snapshot of a run
// ⭐ SSOT: S0 결과 → Snapshot 변환은 여기서만
type Assembler struct {
	engine *s1_signals.Engine
	logger *logger.Logger
}

// NewAssembler creates a new Assembler
func NewAssembler(engine *s1_signals.Engine, log *logger.Logger) *Assembler {
	return &Assembler{
		engine: engine,
		logger: log.WithField("module", "s2_snapshot"),
	}
}

// Build assembles and schema-validates the snapshot.
// Values whose status is FAIL are nil, except the two market summary display
// fields and the flow trio, which keep the fallback default for display.
func (a *Assembler) Build(res *collector.Result, opts Options) (*contracts.Snapshot, error) {
	ok := func(f contracts.Field) *float64 { return res.Value(f).OKPtr() }

	us10y, us2y := ok(contracts.FieldUS10Y), ok(contracts.FieldUS2Y)
	vix, vix3m := ok(contracts.FieldVIX), ok(contracts.FieldVIX3M)
	breakeven := ok(contracts.FieldBreakeven10Y)
	usdkrw := ok(contracts.FieldUSDKRW)
	fwdEPS := ok(contracts.FieldSP500FwdEPS)

	spread := diff(us10y, us2y)
	realRate := diff(us10y, breakeven)

	snap := &contracts.Snapshot{
		MarketSummary: contracts.MarketSummary{
			KOSPIChangePct: res.Value(contracts.FieldKOSPI).Ptr(),
			USDKRW:         res.Value(contracts.FieldUSDKRW).Ptr(),
		},
		Markets: contracts.Markets{
			KR: contracts.KRMarkets{
				KOSPIPct:  ok(contracts.FieldKOSPI),
				KOSDAQPct: ok(contracts.FieldKOSDAQ),
			},
			US: contracts.USMarkets{
				SP500Pct:  ok(contracts.FieldSP500),
				NASDAQPct: ok(contracts.FieldNASDAQ),
				DOWPct:    ok(contracts.FieldDOW),
			},
			FX: contracts.FXMarkets{
				USDKRW:    usdkrw,
				USDKRWPct: ok(contracts.FieldUSDKRWPct),
			},
			Volatility: contracts.Volatility{
				VIX:           vix,
				VIX3M:         vix3m,
				VIXTermSpread: diff(vix3m, vix),
			},
		},
		Macro: contracts.Macro{
			Daily: contracts.DailyMacro{
				US10Y:     us10y,
				US2Y:      us2y,
				Spread210: spread,
				VIX:       vix,
				DXY:       ok(contracts.FieldDXY),
				USDKRW:    usdkrw,
			},
			Monthly: contracts.MonthlyMacro{
				UnemploymentRate: ok(contracts.FieldUnemployment),
				CPIYoY:           ok(contracts.FieldCPIYoY),
				CoreCPIYoY:       ok(contracts.FieldCoreCPIYoY),
				PCEYoY:           ok(contracts.FieldPCEYoY),
				PMI:              ok(contracts.FieldPMI),
				WageLevel:        ok(contracts.FieldWageLevel),
				WageYoY:          ok(contracts.FieldWageYoY),
			},
			Quarterly: contracts.QuarterlyMacro{
				RealGDP:          ok(contracts.FieldRealGDP),
				GDPQoQAnnualized: ok(contracts.FieldGDPQoQ),
			},
			Structural: contracts.StructuralMacro{
				FedFundsRate:    ok(contracts.FieldFedFunds),
				Breakeven10Y:    breakeven,
				RealRate:        realRate,
				HYOAS:           ok(contracts.FieldHYOAS),
				IGOAS:           ok(contracts.FieldIGOAS),
				FedBalanceSheet: ok(contracts.FieldFedBalance),
			},
			Forward: contracts.ForwardMetrics{
				SP500ForwardPE:  ok(contracts.FieldSP500FwdPE),
				SP500ForwardEPS: fwdEPS,
				EPSRevision3M:   EPSRevision(fwdEPS, opts.PriorForwardEPS),
			},
		},
		NewsHeadlines: headlines(res),
		Watchlist:     Watchlist(opts.Watchlist),
	}

	a.applyFlows(snap, res)
	snap.MarketSummary.Note = marketNote(res)

	var engineHeadlines []string
	if res.Status.OK(contracts.FieldHeadlines) {
		engineHeadlines = snap.NewsHeadlines
	}
	snap.DerivedSignals = a.engine.Compute(s1_signals.Inputs{
		Headlines: engineHeadlines,
		KOSPIPct:  snap.Markets.KR.KOSPIPct,
		KOSDAQPct: snap.Markets.KR.KOSDAQPct,
		SP500Pct:  snap.Markets.US.SP500Pct,
		NASDAQPct: snap.Markets.US.NASDAQPct,
		DOWPct:    snap.Markets.US.DOWPct,
		DXY:       snap.Macro.Daily.DXY,
		RealRate:  realRate,
		Spread210: spread,
	})

	if err := s5_validate.Snapshot(snap); err != nil {
		return nil, fmt.Errorf("assemble snapshot: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"stage":     contracts.StageSnapshot,
		"headlines": len(snap.NewsHeadlines),
		"earnings":  snap.DerivedSignals.EarningsScore,
		"liquidity": snap.DerivedSignals.LiquidityScore,
	}).Info("Snapshot assembled")

	return snap, nil
}

func (a *Assembler) applyFlows(snap *contracts.Snapshot, res *collector.Result) {
	flows := res.Flows
	if flows.Present {
		total := flows.Value.Total
		snap.FlowSummary.ForeignNet = contracts.Float(total.Foreign)
		snap.FlowSummary.InstitutionNet = contracts.Float(total.Institution)
		snap.FlowSummary.RetailNet = contracts.Float(total.Retail)
	}

	if !res.Status.OK(contracts.FieldFlows) {
		snap.FlowSummary.Note = fallbackNote(failureNote(res.Status, contracts.FieldFlows, "flows"), noteFlowUnavailable)
		return
	}

	breakdown := flows.Value
	snap.KoreanMarketFlow = &breakdown
	snap.FlowSummary.Note = flowNote(breakdown.Total)
}

// flowNote describes the direction of each investor class (억원)
func flowNote(total contracts.InvestorFlows) string {
	return fmt.Sprintf("Foreign net %s %.0f억원, institution net %s %.0f억원, retail net %s %.0f억원.",
		direction(total.Foreign), abs(total.Foreign),
		direction(total.Institution), abs(total.Institution),
		direction(total.Retail), abs(total.Retail))
}

func direction(v float64) string {
	if v >= 0 {
		return "inflow"
	}
	return "outflow"
}

// marketNote: a readable summary when either display value is non-zero,
// otherwise the failure notes of the two display fields
func marketNote(res *collector.Result) string {
	usdkrw := res.Value(contracts.FieldUSDKRW).Value
	kospi := res.Value(contracts.FieldKOSPI).Value

	if usdkrw != 0 || kospi != 0 {
		headlines := "Headlines loaded."
		if !res.Status.OK(contracts.FieldHeadlines) {
			headlines = "Headlines unavailable."
		}
		flows := "Flows loaded."
		if !res.Status.OK(contracts.FieldFlows) {
			flows = "Flows unavailable."
		}
		return fmt.Sprintf("KOSPI %.2f%%, USD/KRW %.2f. %s %s", kospi, usdkrw, headlines, flows)
	}

	var notes []string
	if n := failureNote(res.Status, contracts.FieldUSDKRW, "usdkrw"); n != "" {
		notes = append(notes, n)
	}
	if n := failureNote(res.Status, contracts.FieldKOSPI, "kospi_change_pct"); n != "" {
		notes = append(notes, n)
	}
	return fallbackNote(strings.Join(notes, "; "), noteMarketUnavailable)
}

// failureNote renders "<label>_fetch_failed: <reason>" for a FAIL field
func failureNote(status contracts.StatusMap, f contracts.Field, label string) string {
	if status.OK(f) {
		return ""
	}
	reason := status.Reason(f)
	if reason == "" {
		reason = "unavailable"
	}
	return fmt.Sprintf("%s_fetch_failed: %s", label, reason)
}

func fallbackNote(note, def string) string {
	if note == "" {
		return def
	}
	return note
}

// headlines never returns nil: a failed list renders as []
func headlines(res *collector.Result) []string {
	if !res.Headlines.Present || res.Headlines.Value == nil {
		return []string{}
	}
	out := make([]string, len(res.Headlines.Value))
	copy(out, res.Headlines.Value)
	return out
}

func diff(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return contracts.Float(s1_signals.Round3(*a - *b))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
