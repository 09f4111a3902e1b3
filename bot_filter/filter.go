package bot_filter

import (
	"context"
	"sort"

	"github.com/turbot/edgar-log-pipeline/logging"
	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/types"
)

// FilterStats describes the outcome of filtering one day
type FilterStats struct {
	RowsIn  int
	RowsOut int
	// the addresses classified as bots, sorted by address
	Bots []*IpStats
	// number of bots which triggered each signal
	SignalCounts map[string]int
}

func (s *FilterStats) Counts() map[string]int {
	res := map[string]int{
		"rows_in":  s.RowsIn,
		"rows_out": s.RowsOut,
		"bot_ips":  len(s.Bots),
	}
	for signal, n := range s.SignalCounts {
		res["signal_"+signal] = n
	}
	return res
}

// Filter removes every record made by an address classified as a bot
type Filter struct {
	thresholds Thresholds
}

func NewFilter(thresholds Thresholds) *Filter {
	return &Filter{thresholds: thresholds}
}

// Apply classifies the addresses in records and returns the records of non-bot
// addresses, in their input order
func (f *Filter) Apply(records []types.LogRecord) ([]types.LogRecord, *FilterStats) {
	stats := ComputeStats(records)
	res := &FilterStats{
		RowsIn:       len(records),
		SignalCounts: map[string]int{SignalRequests: 0, SignalCiks: 0, SignalVolume: 0},
	}

	bots := make(map[string]struct{})
	for ip, s := range stats {
		signals := f.thresholds.Signals(s)
		if len(signals) == 0 {
			continue
		}
		bots[ip] = struct{}{}
		res.Bots = append(res.Bots, s)
		for _, signal := range signals {
			res.SignalCounts[signal]++
		}
	}
	sort.Slice(res.Bots, func(i, j int) bool { return res.Bots[i].Ip < res.Bots[j].Ip })

	kept := make([]types.LogRecord, 0, len(records))
	for _, r := range records {
		if _, isBot := bots[r.Ip]; isBot {
			continue
		}
		kept = append(kept, r)
	}
	res.RowsOut = len(kept)
	return kept, res
}

// FilterFile reads a converted table, filters bots and writes the result to outPath
func (f *Filter) FilterFile(ctx context.Context, inPath, outPath string) (*FilterStats, error) {
	records, err := schema.ReadParquet[types.LogRecord](inPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept, stats := f.Apply(records)
	if err := schema.WriteParquet(outPath, kept); err != nil {
		return stats, err
	}

	logging.FromContext(ctx).Info("Filtered bots", "input", inPath, "thresholds", f.thresholds.String(), "rows_in", stats.RowsIn,
		"rows_out", stats.RowsOut, "bot_ips", len(stats.Bots), "signals", stats.SignalCounts)
	return stats, nil
}
