package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// Category groups fields by the provider capability that serves them
type Category string

const (
	CategoryFX          Category = "fx"
	CategoryIndex       Category = "index"
	CategoryMarketLevel Category = "market_level"
	CategoryMacro       Category = "macro"
	CategoryFlows       Category = "flows"
	CategoryHeadlines   Category = "headlines"
)

// CategoryOf returns the capability that serves f
func CategoryOf(f contracts.Field) (Category, error) {
	switch f {
	case contracts.FieldUSDKRW, contracts.FieldUSDKRWPct:
		return CategoryFX, nil
	case contracts.FieldKOSPI, contracts.FieldKOSDAQ, contracts.FieldSP500, contracts.FieldNASDAQ, contracts.FieldDOW:
		return CategoryIndex, nil
	case contracts.FieldVIX, contracts.FieldVIX3M, contracts.FieldUS10Y, contracts.FieldDXY,
		contracts.FieldSP500FwdPE, contracts.FieldSP500FwdEPS:
		return CategoryMarketLevel, nil
	case contracts.FieldUS2Y,
		contracts.FieldUnemployment, contracts.FieldCPIYoY, contracts.FieldCoreCPIYoY, contracts.FieldPCEYoY,
		contracts.FieldPMI, contracts.FieldWageLevel, contracts.FieldWageYoY,
		contracts.FieldRealGDP, contracts.FieldGDPQoQ,
		contracts.FieldFedFunds, contracts.FieldBreakeven10Y, contracts.FieldHYOAS, contracts.FieldIGOAS, contracts.FieldFedBalance:
		return CategoryMacro, nil
	case contracts.FieldFlows:
		return CategoryFlows, nil
	case contracts.FieldHeadlines:
		return CategoryHeadlines, nil
	default:
		return "", fmt.Errorf("unknown field: %s", f)
	}
}

// Provider is the acquisition capability interface: one method per field category.
// Implementations report failures through Outcome and never panic past the call.
// ⭐ SSOT: 외부 데이터 소스는 모두 이 인터페이스 뒤에
type Provider interface {
	Name() string
	FX(ctx context.Context, field contracts.Field) Outcome[float64]
	IndexChange(ctx context.Context, field contracts.Field) Outcome[float64]
	MarketLevel(ctx context.Context, field contracts.Field) Outcome[float64]
	Macro(ctx context.Context, field contracts.Field) Outcome[float64]
	Flows(ctx context.Context, asOf time.Time) Outcome[contracts.KoreanMarketFlow]
	Headlines(ctx context.Context, limit int) Outcome[[]string]
}

// ValueFetcher binds a single-value field to the provider method that serves it
func ValueFetcher(p Provider, f contracts.Field) FetchFunc[float64] {
	if p == nil {
		return nil
	}
	cat, err := CategoryOf(f)
	if err != nil {
		return func(context.Context) Outcome[float64] { return AbsentErr[float64](err) }
	}
	switch cat {
	case CategoryFX:
		return func(ctx context.Context) Outcome[float64] { return p.FX(ctx, f) }
	case CategoryIndex:
		return func(ctx context.Context) Outcome[float64] { return p.IndexChange(ctx, f) }
	case CategoryMarketLevel:
		return func(ctx context.Context) Outcome[float64] { return p.MarketLevel(ctx, f) }
	case CategoryMacro:
		return func(ctx context.Context) Outcome[float64] { return p.Macro(ctx, f) }
	default:
		return func(context.Context) Outcome[float64] {
			return Absent[float64](fmt.Sprintf("%s is not a single-value field", f))
		}
	}
}

// FlowsFetcher binds the flows field
func FlowsFetcher(p Provider, asOf time.Time) FetchFunc[contracts.KoreanMarketFlow] {
	if p == nil {
		return nil
	}
	return func(ctx context.Context) Outcome[contracts.KoreanMarketFlow] { return p.Flows(ctx, asOf) }
}

// HeadlinesFetcher binds the headlines field
func HeadlinesFetcher(p Provider, limit int) FetchFunc[[]string] {
	if p == nil {
		return nil
	}
	return func(ctx context.Context) Outcome[[]string] { return p.Headlines(ctx, limit) }
}

// ============================================================================
// Default provider
// ============================================================================

const reasonNoDefault = "no default available"

// DefaultProvider is the always-available fallback. It only knows display
// defaults for the fields the report always shows (USD/KRW, KOSPI, flows,
// headlines); every other field stays absent so no placeholder leaks out.
type DefaultProvider struct{}

func (DefaultProvider) Name() string { return "default" }

func (DefaultProvider) FX(_ context.Context, field contracts.Field) Outcome[float64] {
	if field == contracts.FieldUSDKRW {
		return Present(0.0)
	}
	return Absent[float64](reasonNoDefault)
}

func (DefaultProvider) IndexChange(_ context.Context, field contracts.Field) Outcome[float64] {
	if field == contracts.FieldKOSPI {
		return Present(0.0)
	}
	return Absent[float64](reasonNoDefault)
}

func (DefaultProvider) MarketLevel(context.Context, contracts.Field) Outcome[float64] {
	return Absent[float64](reasonNoDefault)
}

func (DefaultProvider) Macro(context.Context, contracts.Field) Outcome[float64] {
	return Absent[float64](reasonNoDefault)
}

func (DefaultProvider) Flows(_ context.Context, asOf time.Time) Outcome[contracts.KoreanMarketFlow] {
	return Present(contracts.KoreanMarketFlow{
		TradeDate: asOf.Format("2006-01-02"),
		Source:    "default",
		ByMarket:  map[string]contracts.InvestorFlows{},
	})
}

func (DefaultProvider) Headlines(context.Context, int) Outcome[[]string] {
	return Present([]string{})
}

// disabledProvider backs FALLBACK_MODE=disabled: every fallback fails
type disabledProvider struct{}

const reasonFallbackDisabled = "fallback disabled"

func (disabledProvider) Name() string { return "disabled" }

func (disabledProvider) FX(context.Context, contracts.Field) Outcome[float64] {
	return Absent[float64](reasonFallbackDisabled)
}

func (disabledProvider) IndexChange(context.Context, contracts.Field) Outcome[float64] {
	return Absent[float64](reasonFallbackDisabled)
}

func (disabledProvider) MarketLevel(context.Context, contracts.Field) Outcome[float64] {
	return Absent[float64](reasonFallbackDisabled)
}

func (disabledProvider) Macro(context.Context, contracts.Field) Outcome[float64] {
	return Absent[float64](reasonFallbackDisabled)
}

func (disabledProvider) Flows(context.Context, time.Time) Outcome[contracts.KoreanMarketFlow] {
	return Absent[contracts.KoreanMarketFlow](reasonFallbackDisabled)
}

func (disabledProvider) Headlines(context.Context, int) Outcome[[]string] {
	return Absent[[]string](reasonFallbackDisabled)
}

// NewFallbackProvider returns the default provider, or one that always
// fails when the in-process fallback is disabled
func NewFallbackProvider(enabled bool) Provider {
	if enabled {
		return DefaultProvider{}
	}
	return disabledProvider{}
}

// ============================================================================
// Fixture provider (offline runs, tests)
// ============================================================================

// FixtureProvider serves fixed values. Fields without a value are absent
// with the reason from Failures (or "unavailable").
type FixtureProvider struct {
	Values     map[contracts.Field]float64
	Flow       *contracts.KoreanMarketFlow
	Titles     []string
	Failures   map[contracts.Field]string
	PanicField contracts.Field
}

func (p *FixtureProvider) Name() string { return "fixture" }

func (p *FixtureProvider) value(field contracts.Field) Outcome[float64] {
	if p.PanicField != "" && field == p.PanicField {
		panic(fmt.Sprintf("fixture panic on %s", field))
	}
	if v, ok := p.Values[field]; ok {
		return Present(v)
	}
	return Absent[float64](p.Failures[field])
}

func (p *FixtureProvider) FX(_ context.Context, field contracts.Field) Outcome[float64] {
	return p.value(field)
}

func (p *FixtureProvider) IndexChange(_ context.Context, field contracts.Field) Outcome[float64] {
	return p.value(field)
}

func (p *FixtureProvider) MarketLevel(_ context.Context, field contracts.Field) Outcome[float64] {
	return p.value(field)
}

func (p *FixtureProvider) Macro(_ context.Context, field contracts.Field) Outcome[float64] {
	return p.value(field)
}

func (p *FixtureProvider) Flows(_ context.Context, _ time.Time) Outcome[contracts.KoreanMarketFlow] {
	if p.Flow == nil {
		return Absent[contracts.KoreanMarketFlow](p.Failures[contracts.FieldFlows])
	}
	return Present(*p.Flow)
}

func (p *FixtureProvider) Headlines(_ context.Context, limit int) Outcome[[]string] {
	if p.Titles == nil {
		return Absent[[]string](p.Failures[contracts.FieldHeadlines])
	}
	titles := p.Titles
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	return Present(append([]string(nil), titles...))
}

// SampleFixture is a deterministic full-coverage market day used by
// `committee run --offline`
func SampleFixture() *FixtureProvider {
	return &FixtureProvider{
		Values: map[contracts.Field]float64{
			contracts.FieldUSDKRW:       1382.5,
			contracts.FieldUSDKRWPct:    -0.21,
			contracts.FieldKOSPI:        0.84,
			contracts.FieldKOSDAQ:       1.12,
			contracts.FieldSP500:        0.35,
			contracts.FieldNASDAQ:       0.62,
			contracts.FieldDOW:          0.11,
			contracts.FieldVIX:          15.8,
			contracts.FieldVIX3M:        17.9,
			contracts.FieldUS10Y:        4.21,
			contracts.FieldUS2Y:         3.98,
			contracts.FieldDXY:          101.4,
			contracts.FieldSP500FwdPE:   21.3,
			contracts.FieldSP500FwdEPS:  271.4,
			contracts.FieldUnemployment: 4.1,
			contracts.FieldCPIYoY:       2.9,
			contracts.FieldCoreCPIYoY:   3.1,
			contracts.FieldPCEYoY:       2.6,
			contracts.FieldPMI:          49.2,
			contracts.FieldWageLevel:    35.8,
			contracts.FieldWageYoY:      3.9,
			contracts.FieldRealGDP:      23400.5,
			contracts.FieldGDPQoQ:       2.8,
			contracts.FieldFedFunds:     4.33,
			contracts.FieldBreakeven10Y: 2.31,
			contracts.FieldHYOAS:        3.05,
			contracts.FieldIGOAS:        0.88,
			contracts.FieldFedBalance:   6650000,
		},
		Flow: &contracts.KoreanMarketFlow{
			Source: "fixture",
			ByMarket: map[string]contracts.InvestorFlows{
				"KOSPI":  {Foreign: 1520, Institution: -340, Retail: -1180},
				"KOSDAQ": {Foreign: 210, Institution: 45, Retail: -255},
			},
			Total: contracts.InvestorFlows{Foreign: 1730, Institution: -295, Retail: -1435},
		},
		Titles: []string{
			"Chipmakers rally as memory prices rebound",
			"KOSPI closes higher on foreign buying",
			"Fed officials signal patience on rate path",
			"Samsung Electronics beats operating profit estimates",
			"Oil slips as inventories build",
			"Won firms against the dollar",
			"Battery makers slump after weak guidance",
			"Treasury yields steady ahead of CPI data",
		},
	}
}
