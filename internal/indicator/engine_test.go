package indicator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

func makeSeries(ticker string, closes []float64) model.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = model.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return model.PriceSeries{Ticker: ticker, Bars: bars}
}

func TestEngine_Ramp_SMAValuesAndNoCross(t *testing.T) {
	// Ramp 100..129: SMA5[29] = mean(125..129) = 127, SMA25[29] = mean(105..129) = 117.
	// Both series are first defined together at index 24 with fast > slow,
	// so there is no defined predecessor pair and no event fires.
	cfg := DefaultConfig()
	cfg.CrossPairs = []model.CrossPair{{Fast: 5, Slow: 25}}

	b, err := Compute(makeSeries("RAMP", ramp(100, 30)), cfg)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	v5, ok := b.MA[5].At(29)
	if !ok {
		t.Fatal("SMA5[29] absent")
	}
	assertClose(t, "SMA5[29]", v5, 127.0, 1e-9)

	v25, ok := b.MA[25].At(29)
	if !ok {
		t.Fatal("SMA25[29] absent")
	}
	assertClose(t, "SMA25[29]", v25, 117.0, 1e-9)

	if len(b.Crosses) != 0 {
		t.Errorf("expected no cross events, got %+v", b.Crosses)
	}
}

func TestEngine_GoldenAndDeadCross(t *testing.T) {
	// fast=1 (the close itself), slow=2.
	// closes: 10, 9, 11, 12, 8
	// SMA1:     10, 9, 11, 12, 8
	// SMA2:     -, 9.5, 10, 11.5, 10
	// idx2: prev 9<=9.5, now 11>10 → golden
	// idx4: prev 12>=11.5, now 8<10 → dead
	cfg := DefaultConfig()
	cfg.MAWindows = nil
	cfg.CrossPairs = []model.CrossPair{{Fast: 1, Slow: 2}}

	s := makeSeries("X", []float64{10, 9, 11, 12, 8})
	b, err := Compute(s, cfg)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if len(b.Crosses) != 2 {
		t.Fatalf("expected 2 events, got %+v", b.Crosses)
	}
	if b.Crosses[0].Kind != model.GoldenCross || b.Crosses[0].Index != 2 {
		t.Errorf("event 0 = %+v, want golden at 2", b.Crosses[0])
	}
	if !b.Crosses[0].Date.Equal(s.Bars[2].Date) {
		t.Errorf("event 0 date = %v, want %v", b.Crosses[0].Date, s.Bars[2].Date)
	}
	if b.Crosses[1].Kind != model.DeadCross || b.Crosses[1].Index != 4 {
		t.Errorf("event 1 = %+v, want dead at 4", b.Crosses[1])
	}

	// Windows named only by cross pairs are still computed.
	if _, ok := b.MA[1]; !ok {
		t.Error("MA[1] missing")
	}
	if _, ok := b.MA[2]; !ok {
		t.Error("MA[2] missing")
	}
}

func TestEngine_TouchThenCross(t *testing.T) {
	// Equal readings count as "not above" for golden and "not below" for dead.
	// SMA1: 10, 10, 12 ; SMA2: -, 10, 11
	// idx2: prev 10<=10, now 12>11 → golden
	cfg := DefaultConfig()
	cfg.CrossPairs = []model.CrossPair{{Fast: 1, Slow: 2}}
	b, err := Compute(makeSeries("X", []float64{10, 10, 12}), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Crosses) != 1 || b.Crosses[0].Kind != model.GoldenCross || b.Crosses[0].Index != 2 {
		t.Fatalf("got %+v", b.Crosses)
	}
}

func TestEngine_MultiPairOrdering(t *testing.T) {
	// Both pairs cross golden at index 2; ties keep configured pair order.
	cfg := DefaultConfig()
	cfg.CrossPairs = []model.CrossPair{{Fast: 2, Slow: 3}, {Fast: 1, Slow: 2}}
	// closes: 10, 8, 20
	// SMA1: 10, 8, 20  SMA2: -, 9, 14  SMA3: -, -, 12.667
	// pair 1/2 idx2: prev 8<=9, now 20>14 → golden
	// pair 2/3 has no defined predecessor at idx2 → none
	b, err := Compute(makeSeries("X", []float64{10, 8, 20}), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Crosses) != 1 || b.Crosses[0].Pair != (model.CrossPair{Fast: 1, Slow: 2}) {
		t.Fatalf("got %+v", b.Crosses)
	}

	// closes: 10, 8, 6, 20 → pair 2/3 idx3: prev 7<=8, now 13>11.33 golden;
	// pair 1/2 idx3: prev 6<=7, now 20>13 golden. Pair 2/3 is configured first.
	b, err = Compute(makeSeries("X", []float64{10, 8, 6, 20}), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Crosses) != 2 {
		t.Fatalf("expected 2 events, got %+v", b.Crosses)
	}
	if b.Crosses[0].Pair != (model.CrossPair{Fast: 2, Slow: 3}) || b.Crosses[1].Pair != (model.CrossPair{Fast: 1, Slow: 2}) {
		t.Errorf("tie order not preserved: %+v", b.Crosses)
	}
}

func TestEngine_EmptySeries(t *testing.T) {
	b, err := Compute(model.PriceSeries{Ticker: "EMPTY"}, DefaultConfig())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if b.Len() != 0 || len(b.RSI) != 0 || len(b.MACD.Line) != 0 || len(b.Bollinger.Upper) != 0 {
		t.Errorf("expected empty series, got %+v", b)
	}
	for w, s := range b.MA {
		if len(s) != 0 {
			t.Errorf("MA[%d] len=%d", w, len(s))
		}
	}
	if len(b.Crosses) != 0 {
		t.Errorf("expected no crosses")
	}
}

func TestEngine_SeriesLengthsAligned(t *testing.T) {
	closes := ramp(10, 250)
	b, err := Compute(makeSeries("A", closes), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	n := len(closes)
	check := map[string]model.Series{
		"rsi": b.RSI, "line": b.MACD.Line, "signal": b.MACD.Signal, "hist": b.MACD.Histogram,
		"upper": b.Bollinger.Upper, "middle": b.Bollinger.Middle, "lower": b.Bollinger.Lower,
		"bandwidth": b.Bollinger.Bandwidth,
	}
	for w, s := range b.MA {
		check[fmt.Sprintf("ma%d", w)] = s
	}
	for name, s := range check {
		if len(s) != n {
			t.Errorf("%s len=%d, want %d", name, len(s), n)
		}
	}
	if got := b.MAWindows(); len(got) != 4 || got[0] != 5 || got[3] != 200 {
		t.Errorf("MAWindows() = %v", got)
	}
}

func TestEngine_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"macd fast >= slow", func(c *Config) { c.MACDFast, c.MACDSlow = 26, 12 }},
		{"macd fast == slow", func(c *Config) { c.MACDFast, c.MACDSlow = 12, 12 }},
		{"zero rsi", func(c *Config) { c.RSIPeriod = 0 }},
		{"negative ma window", func(c *Config) { c.MAWindows = []int{5, -1} }},
		{"zero signal", func(c *Config) { c.MACDSignal = 0 }},
		{"zero bollinger window", func(c *Config) { c.BollingerWindow = 0 }},
		{"negative k", func(c *Config) { c.BollingerK = -1 }},
		{"inverted cross pair", func(c *Config) { c.CrossPairs = []model.CrossPair{{Fast: 75, Slow: 25}} }},
		{"zero cross window", func(c *Config) { c.CrossPairs = []model.CrossPair{{Fast: 0, Slow: 25}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			b, err := Compute(makeSeries("X", ramp(1, 10)), cfg)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
			if b != nil {
				t.Error("expected nil bundle")
			}
		})
	}
}

func TestEngine_MalformedInput(t *testing.T) {
	s := makeSeries("X", ramp(1, 5))
	s.Bars[3].Date = s.Bars[1].Date

	_, err := Compute(s, DefaultConfig())
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestEngine_OverflowingWindowIsAbsent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MAWindows = []int{2}
	cfg.CrossPairs = nil
	b, err := Compute(makeSeries("X", []float64{1.5e308, 1.5e308, 1}), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := b.MA[2].At(1); ok {
		t.Errorf("SMA(2)[1] = %v, want absent on overflow", v)
	}
	if _, ok := b.MA[2].At(2); !ok {
		t.Error("SMA(2)[2] should be present once the window is finite")
	}
	if _, err := json.Marshal(b); err != nil {
		t.Fatalf("bundle does not encode: %v", err)
	}
}

func TestEngine_ZeroK_CollapsesBands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BollingerK = 0
	b, err := Compute(makeSeries("X", ramp(1, 30)), cfg)
	if err != nil {
		t.Fatal(err)
	}
	up, _ := b.Bollinger.Upper.At(29)
	lo, _ := b.Bollinger.Lower.At(29)
	mid, _ := b.Bollinger.Middle.At(29)
	if up != mid || lo != mid {
		t.Errorf("k=0 bands should equal middle: %v %v %v", up, mid, lo)
	}
}

func TestEngine_ConstantSeries_RSI50(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 42
	}
	b, err := Compute(makeSeries("FLAT", closes), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i := 14; i < 40; i++ {
		if v, ok := b.RSI.At(i); !ok || v != 50 {
			t.Errorf("RSI[%d] = %v, %v; want 50", i, v, ok)
		}
	}
}

func TestEngine_ConcurrentCompute(t *testing.T) {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := makeSeries("C", ramp(100, 300))
	want, _ := e.Compute(s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Compute(s)
			if err != nil {
				t.Error(err)
				return
			}
			if len(got.Crosses) != len(want.Crosses) {
				t.Errorf("crosses %d != %d", len(got.Crosses), len(want.Crosses))
			}
			v1, _ := got.RSI.Last()
			v2, _ := want.RSI.Last()
			if v1 != v2 {
				t.Errorf("RSI differs: %v vs %v", v1, v2)
			}
		}()
	}
	wg.Wait()
}

func TestEngine_ConfigIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg.MAWindows[0] = -5
	if err := e.Config().Validate(); err != nil {
		t.Errorf("engine config mutated through caller slice: %v", err)
	}
}

func TestConfig_MaxLookback(t *testing.T) {
	if got := DefaultConfig().MaxLookback(); got != 200 {
		t.Errorf("MaxLookback() = %d, want 200", got)
	}
	cfg := DefaultConfig()
	cfg.MAWindows = []int{5}
	cfg.CrossPairs = nil
	// macd 26+9-1 = 34 beats rsi 15 and bollinger 20
	if got := cfg.MaxLookback(); got != 34 {
		t.Errorf("MaxLookback() = %d, want 34", got)
	}
}
