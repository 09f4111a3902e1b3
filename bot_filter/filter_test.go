package bot_filter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/types"
	"github.com/turbot/pipe-fittings/utils"
)

var day = time.Date(2017, 6, 30, 0, 0, 0, 0, time.UTC)

// burst returns n requests from ip within the same minute, all for cik
func burst(ip string, minute int, n int, cik *int64) []types.LogRecord {
	var res []types.LogRecord
	for i := 0; i < n; i++ {
		res = append(res, types.LogRecord{
			Ip:        ip,
			Timestamp: day.Add(time.Duration(minute)*time.Minute + time.Duration(i%60)*time.Second),
			Code:      200,
			Cik:       cik,
		})
	}
	return res
}

// distinctCiks returns one request per cik from ip within the same minute
func distinctCiks(ip string, minute int, n int) []types.LogRecord {
	var res []types.LogRecord
	for i := 0; i < n; i++ {
		res = append(res, types.LogRecord{
			Ip:        ip,
			Timestamp: day.Add(time.Duration(minute)*time.Minute + time.Duration(i)*time.Second),
			Code:      200,
			Cik:       utils.ToPointer(int64(1000 + i)),
		})
	}
	return res
}

// spread returns n requests from ip, one per minute, all for the same cik
func spread(ip string, n int) []types.LogRecord {
	var res []types.LogRecord
	for i := 0; i < n; i++ {
		res = append(res, burst(ip, i, 1, utils.ToPointer(int64(1)))...)
	}
	return res
}

func ips(records []types.LogRecord) map[string]int {
	res := make(map[string]int)
	for _, r := range records {
		res[r.Ip]++
	}
	return res
}

func TestFilterThresholds(t *testing.T) {
	tests := []struct {
		name        string
		records     []types.LogRecord
		wantBot     bool
		wantSignals []string
	}{
		{name: "single request", records: burst("1.1.1.a", 0, 1, nil), wantBot: false},
		{name: "25 requests in a minute", records: burst("1.1.1.a", 0, 25, utils.ToPointer(int64(1))), wantBot: false},
		{name: "26 requests in a minute", records: burst("1.1.1.a", 0, 26, utils.ToPointer(int64(1))), wantBot: true, wantSignals: []string{"R"}},
		{name: "26 requests over two minutes", records: append(burst("1.1.1.a", 0, 13, nil), burst("1.1.1.a", 1, 13, nil)...), wantBot: false},
		{name: "3 ciks in a minute", records: distinctCiks("1.1.1.a", 0, 3), wantBot: false},
		{name: "4 ciks in a minute", records: distinctCiks("1.1.1.a", 0, 4), wantBot: true, wantSignals: []string{"P"}},
		{name: "null ciks are not counted", records: burst("1.1.1.a", 0, 10, nil), wantBot: false},
		{name: "500 requests in a day", records: spread("1.1.1.a", 500), wantBot: false},
		{name: "501 requests in a day", records: spread("1.1.1.a", 501), wantBot: true, wantSignals: []string{"V"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, stats := NewFilter(DefaultThresholds()).Apply(tt.records)
			assert.Equal(t, len(tt.records), stats.RowsIn)
			if tt.wantBot {
				assert.Empty(t, kept)
				require.Len(t, stats.Bots, 1)
				assert.Equal(t, tt.wantSignals, DefaultThresholds().Signals(stats.Bots[0]))
				return
			}
			assert.Equal(t, tt.records, kept)
			assert.Empty(t, stats.Bots)
		})
	}
}

func TestFilterMixed(t *testing.T) {
	var records []types.LogRecord
	// interleave a bot with two humans so input order matters
	human1 := burst("2.2.2.a", 0, 3, utils.ToPointer(int64(7)))
	human2 := burst("3.3.3.a", 5, 2, nil)
	bot := distinctCiks("9.9.9.a", 0, 5)
	records = append(records, human1[0], bot[0], human2[0], bot[1], human1[1], bot[2], bot[3], human2[1], bot[4], human1[2])

	kept, stats := NewFilter(DefaultThresholds()).Apply(records)

	assert.Equal(t, map[string]int{"2.2.2.a": 3, "3.3.3.a": 2}, ips(kept))
	assert.Equal(t, []types.LogRecord{human1[0], human2[0], human1[1], human2[1], human1[2]}, kept)
	assert.Equal(t, 10, stats.RowsIn)
	assert.Equal(t, 5, stats.RowsOut)
	assert.Equal(t, 1, stats.SignalCounts["P"])
	assert.Equal(t, 0, stats.SignalCounts["R"])
	assert.Equal(t, 1, stats.Counts()["bot_ips"])
}

func TestFilterCustomThresholds(t *testing.T) {
	records := burst("1.1.1.a", 0, 11, nil)
	kept, _ := NewFilter(Thresholds{MaxRequestsPerMinute: 10, MaxCiksPerMinute: 3, MaxRequestsPerDay: 500}).Apply(records)
	assert.Empty(t, kept)
}

func TestComputeStats(t *testing.T) {
	records := append(distinctCiks("1.1.1.a", 0, 2), burst("1.1.1.a", 1, 5, utils.ToPointer(int64(1)))...)
	stats := ComputeStats(records)

	require.Contains(t, stats, "1.1.1.a")
	s := stats["1.1.1.a"]
	assert.Equal(t, 7, s.Requests)
	assert.Equal(t, 5, s.MaxRequestsPerMinute)
	assert.Equal(t, 2, s.MaxCiksPerMinute)
}

func TestFilterFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "converted.parquet")
	out := filepath.Join(dir, "no_bots.parquet")

	records := append(burst("1.1.1.a", 0, 30, nil), burst("2.2.2.a", 0, 1, nil)...)
	require.NoError(t, schema.WriteParquet(in, records))

	stats, err := NewFilter(DefaultThresholds()).FilterFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 31, stats.RowsIn)
	assert.Equal(t, 1, stats.RowsOut)

	got, err := schema.ReadParquet[types.LogRecord](out)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2.2.2.a", got[0].Ip)
}
