package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turbot/edgar-log-pipeline/artifact_loader"
	"github.com/turbot/edgar-log-pipeline/bot_filter"
	"github.com/turbot/edgar-log-pipeline/collection_state"
	"github.com/turbot/edgar-log-pipeline/constants"
	"github.com/turbot/edgar-log-pipeline/enrichment"
	"github.com/turbot/edgar-log-pipeline/events"
	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/helpers"
	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/table"
	"github.com/turbot/edgar-log-pipeline/types"
)

const csvHeader = "ip,date,time,zone,cik,accession,extention,code,size,idx,norefer,noagent,find,crawler,browser\n"

// dayLog returns a raw log for date containing one request from 9.9.9.9, two requests
// from 5.6.7.def, a failed request and 26 requests in one minute from a bot
func dayLog(date string) string {
	var sb strings.Builder
	sb.WriteString(csvHeader)
	sb.WriteString(fmt.Sprintf("9.9.9.9,%s,00:00:01,0.0,1000.0,0001-17-000001,.txt,200.0,100.0,0.0,0.0,0.0,0.0,0.0,\n", date))
	sb.WriteString(fmt.Sprintf("5.6.7.def,%s,00:00:02,0.0,1001.0,0001-17-000002,.txt,200.0,100.0,0.0,0.0,0.0,0.0,0.0,\n", date))
	sb.WriteString(fmt.Sprintf("5.6.7.def,%s,00:05:00,0.0,1002.0,0001-17-000003,.txt,200.0,100.0,0.0,0.0,0.0,0.0,0.0,\n", date))
	sb.WriteString(fmt.Sprintf("5.6.7.xyz,%s,00:06:00,0.0,1002.0,0001-17-000003,.txt,404.0,,0.0,0.0,0.0,0.0,0.0,\n", date))
	for i := 0; i < 26; i++ {
		sb.WriteString(fmt.Sprintf("1.2.3.abc,%s,00:01:%02d,0.0,1003.0,0001-17-000004,.txt,200.0,100.0,0.0,0.0,0.0,0.0,0.0,\n", date, i))
	}
	return sb.String()
}

func buildArchive(t *testing.T, name, contents string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, contents)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fakeFetcher struct {
	archives map[string][]byte
	failures map[string]error
	panics   map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func newFakeFetcher(t *testing.T, dates ...string) *fakeFetcher {
	f := &fakeFetcher{
		archives: map[string][]byte{},
		failures: map[string]error{},
		panics:   map[string]bool{},
		calls:    map[string]int{},
	}
	for _, d := range dates {
		name := "log" + strings.ReplaceAll(d, "-", "") + ".csv"
		f.archives[d] = buildArchive(t, name, dayLog(d))
	}
	return f
}

func (f *fakeFetcher) Identifier() string {
	return "fake"
}

func (f *fakeFetcher) Fetch(_ context.Context, date time.Time, destPath string) error {
	d := helpers.FormatDate(date)
	f.mu.Lock()
	f.calls[d]++
	f.mu.Unlock()

	if f.panics[d] {
		panic("fetcher exploded")
	}
	if err := f.failures[d]; err != nil {
		return &types.FetchError{Date: d, Source: "fake", Err: err}
	}
	data, ok := f.archives[d]
	if !ok {
		return &types.FetchError{Date: d, Source: "fake", Err: errors.New("no archive")}
	}
	return filepaths.WriteAtomic(destPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (f *fakeFetcher) callCount(date string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[date]
}

type fakeLookup struct {
	locations map[string]types.Location
}

func (f *fakeLookup) Lookup(_ context.Context, ip string) (types.Location, error) {
	loc, ok := f.locations[ip]
	if !ok {
		return types.Location{}, types.ErrLocationNotFound
	}
	return loc, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingObserver) Notify(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func newTestPipeline(t *testing.T, baseDir string, fetcher Fetcher, opts ...PipelineOption) *Pipeline {
	t.Helper()
	layout := filepaths.NewLayout(baseDir)
	require.NoError(t, layout.Ensure())

	lookup := &fakeLookup{locations: map[string]types.Location{
		"9.9.9.9": {CountryCode: "US", CountryName: "United States of America", RegionName: "California", CityName: "Berkeley"},
		"5.6.7.0": {CountryCode: "DE", CountryName: "Germany", RegionName: "Hessen", CityName: "Frankfurt am Main"},
	}}
	enricher, err := enrichment.NewEnricher(lookup)
	require.NoError(t, err)
	standardizer, err := enrichment.NewCountryStandardizer()
	require.NoError(t, err)

	p, err := New(Deps{
		Layout:       layout,
		Fetcher:      fetcher,
		Extractor:    artifact_loader.NewZipExtractor(),
		Converter:    table.NewConverter(table.ConverterConfig{ExcludeIndexPages: true, ExcludeCrawlers: true}),
		Filter:       bot_filter.NewFilter(bot_filter.DefaultThresholds()),
		Enricher:     enricher,
		Standardizer: standardizer,
	}, append([]PipelineOption{WithExecutionId("test-run")}, opts...)...)
	require.NoError(t, err)
	return p
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := helpers.ParseDate(s)
	require.NoError(t, err)
	return d
}

func artifactPath(t *testing.T, baseDir, stage, date string) string {
	t.Helper()
	p, err := filepaths.NewLayout(baseDir).ArtifactPath(stage, date)
	require.NoError(t, err)
	return p
}

func readArtifacts(t *testing.T, baseDir, date string) map[string][]byte {
	t.Helper()
	res := map[string][]byte{}
	for _, stage := range constants.Stages {
		data, err := os.ReadFile(artifactPath(t, baseDir, stage, date))
		require.NoError(t, err)
		res[stage] = data
	}
	return res
}

func TestProcessDate_EndToEnd(t *testing.T) {
	baseDir := t.TempDir()
	date := "2017-06-30"
	p := newTestPipeline(t, baseDir, newFakeFetcher(t, date))

	res := p.ProcessDate(context.Background(), mustDate(t, date))
	require.NoError(t, res.Err)
	assert.Equal(t, constants.Stages, res.Ran)
	assert.Empty(t, res.Skipped)

	// the single request from 9.9.9.9 survives every stage
	output, err := schema.ReadParquet[types.EnrichedRecord](artifactPath(t, baseDir, constants.StageFinalize, date))
	require.NoError(t, err)
	require.Len(t, output, 3)

	byIp := map[string][]types.EnrichedRecord{}
	for _, r := range output {
		byIp[r.Ip] = append(byIp[r.Ip], r)
	}
	require.Len(t, byIp["9.9.9.9"], 1)
	nine := byIp["9.9.9.9"][0]
	assert.Equal(t, "9.9.9.9", nine.CleanedIp)
	assert.Equal(t, "US", nine.CountryCode)
	assert.Equal(t, "United States", nine.CountryName)
	assert.Equal(t, "Berkeley", nine.CityName)

	// records sharing an address share a location
	require.Len(t, byIp["5.6.7.def"], 2)
	assert.Equal(t, byIp["5.6.7.def"][0].Location(), byIp["5.6.7.def"][1].Location())
	assert.Equal(t, "5.6.7.0", byIp["5.6.7.def"][0].CleanedIp)

	// bot traffic and non-2xx requests are gone
	assert.Empty(t, byIp["1.2.3.abc"])
	assert.Empty(t, byIp["5.6.7.xyz"])

	converted, err := schema.ReadParquet[types.LogRecord](artifactPath(t, baseDir, constants.StageConvert, date))
	require.NoError(t, err)
	for _, r := range converted {
		assert.NotEqual(t, int32(404), r.Code)
	}

	ledger, err := collection_state.Load(filepaths.NewLayout(baseDir).LedgerPath(date), date)
	require.NoError(t, err)
	assert.Equal(t, "test-run", ledger.ExecutionId)
	for _, stage := range constants.Stages {
		assert.Equal(t, collection_state.StatusDone, ledger.Status(stage), stage)
	}
}

func TestProcessDate_Idempotent(t *testing.T) {
	baseDir := t.TempDir()
	date := "2017-06-30"
	fetcher := newFakeFetcher(t, date)
	p := newTestPipeline(t, baseDir, fetcher)

	require.NoError(t, p.ProcessDate(context.Background(), mustDate(t, date)).Err)
	first := readArtifacts(t, baseDir, date)

	res := p.ProcessDate(context.Background(), mustDate(t, date))
	require.NoError(t, res.Err)
	assert.Empty(t, res.Ran)
	assert.Equal(t, constants.Stages, res.Skipped)
	assert.Equal(t, 1, fetcher.callCount(date))

	assert.Equal(t, first, readArtifacts(t, baseDir, date))
}

func TestProcessDate_ForceMatchesFreshRun(t *testing.T) {
	date := "2017-06-30"

	freshDir := t.TempDir()
	fresh := newTestPipeline(t, freshDir, newFakeFetcher(t, date))
	require.NoError(t, fresh.ProcessDate(context.Background(), mustDate(t, date)).Err)

	forcedDir := t.TempDir()
	fetcher := newFakeFetcher(t, date)
	require.NoError(t, newTestPipeline(t, forcedDir, fetcher).ProcessDate(context.Background(), mustDate(t, date)).Err)

	forced := newTestPipeline(t, forcedDir, fetcher, WithForce(true))
	res := forced.ProcessDate(context.Background(), mustDate(t, date))
	require.NoError(t, res.Err)
	assert.Equal(t, constants.Stages, res.Ran)
	assert.Equal(t, 2, fetcher.callCount(date))

	want, err := schema.ReadParquet[types.EnrichedRecord](artifactPath(t, freshDir, constants.StageFinalize, date))
	require.NoError(t, err)
	got, err := schema.ReadParquet[types.EnrichedRecord](artifactPath(t, forcedDir, constants.StageFinalize, date))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestProcessDate_RerunsInterruptedStage(t *testing.T) {
	baseDir := t.TempDir()
	date := "2017-06-30"
	p := newTestPipeline(t, baseDir, newFakeFetcher(t, date))
	require.NoError(t, p.ProcessDate(context.Background(), mustDate(t, date)).Err)

	// simulate a run killed while converting
	layout := filepaths.NewLayout(baseDir)
	ledger, err := collection_state.Load(layout.LedgerPath(date), date)
	require.NoError(t, err)
	require.NoError(t, ledger.MarkInProgress(constants.StageConvert, artifactPath(t, baseDir, constants.StageConvert, date)))

	res := p.ProcessDate(context.Background(), mustDate(t, date))
	require.NoError(t, res.Err)
	assert.Equal(t, []string{constants.StageFetch, constants.StageExtract}, res.Skipped)
	assert.Equal(t, []string{constants.StageConvert, constants.StageFilterBots, constants.StageEnrich, constants.StageFinalize}, res.Ran)
}

func TestProcessDate_RebuildsMissingArtifactOnly(t *testing.T) {
	tests := []struct {
		name    string
		removed string
	}{
		{name: "archive removed", removed: constants.StageFetch},
		{name: "extracted table removed", removed: constants.StageExtract},
		{name: "parquet table removed", removed: constants.StageConvert},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseDir := t.TempDir()
			date := "2017-06-30"
			p := newTestPipeline(t, baseDir, newFakeFetcher(t, date))
			require.NoError(t, p.ProcessDate(context.Background(), mustDate(t, date)).Err)
			final := readArtifacts(t, baseDir, date)[constants.StageFinalize]

			require.NoError(t, os.Remove(artifactPath(t, baseDir, tt.removed, date)))

			res := p.ProcessDate(context.Background(), mustDate(t, date))
			require.NoError(t, res.Err)
			assert.Equal(t, []string{tt.removed}, res.Ran)
			assert.Len(t, res.Skipped, len(constants.Stages)-1)
			assert.NotContains(t, res.Skipped, tt.removed)
			assert.FileExists(t, artifactPath(t, baseDir, tt.removed, date))
			assert.Equal(t, final, readArtifacts(t, baseDir, date)[constants.StageFinalize])
		})
	}
}

func TestProcessDate_AdoptsExistingArchive(t *testing.T) {
	baseDir := t.TempDir()
	date := "2017-06-30"
	fetcher := newFakeFetcher(t)
	p := newTestPipeline(t, baseDir, fetcher)

	// archive downloaded by hand
	archive := buildArchive(t, "log20170630.csv", dayLog(date))
	require.NoError(t, os.WriteFile(artifactPath(t, baseDir, constants.StageFetch, date), archive, 0644))

	res := p.ProcessDate(context.Background(), mustDate(t, date))
	require.NoError(t, res.Err)
	assert.Equal(t, []string{constants.StageFetch}, res.Skipped)
	assert.Equal(t, 0, fetcher.callCount(date))

	ledger, err := collection_state.Load(filepaths.NewLayout(baseDir).LedgerPath(date), date)
	require.NoError(t, err)
	assert.Equal(t, collection_state.StatusDone, ledger.Status(constants.StageFetch))
}

func TestRun_FailureIsolation(t *testing.T) {
	baseDir := t.TempDir()
	fetcher := newFakeFetcher(t, "2017-06-30", "2017-07-02", "2017-07-03")
	fetcher.failures["2017-07-02"] = errors.New("503 service unavailable")
	fetcher.panics["2017-07-03"] = true
	delete(fetcher.archives, "2017-07-03")

	observer := &recordingObserver{}
	p := newTestPipeline(t, baseDir, fetcher)
	require.NoError(t, p.AddObserver(observer))

	summary, err := p.Run(context.Background(), mustDate(t, "2017-06-30"), mustDate(t, "2017-07-03"))
	require.NoError(t, err)
	require.Len(t, summary.Dates, 4)
	assert.False(t, summary.Cancelled)

	tests := []struct {
		date        string
		wantErr     string
		failedStage string
	}{
		{date: "2017-06-30"},
		{date: "2017-07-01", wantErr: "no archive", failedStage: constants.StageFetch},
		{date: "2017-07-02", wantErr: "503 service unavailable", failedStage: constants.StageFetch},
		{date: "2017-07-03", wantErr: "stage panicked: fetcher exploded", failedStage: constants.StageFetch},
	}
	for i, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			res := summary.Dates[i]
			assert.Equal(t, tt.date, res.Date)
			if tt.wantErr == "" {
				assert.NoError(t, res.Err)
				assert.FileExists(t, artifactPath(t, baseDir, constants.StageFinalize, tt.date))
				return
			}
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.wantErr)
			assert.Equal(t, tt.failedStage, res.FailedStage)

			var stageErr *types.StageError
			require.ErrorAs(t, res.Err, &stageErr)
			assert.Equal(t, tt.failedStage, stageErr.Stage)

			ledger, err := collection_state.Load(filepaths.NewLayout(baseDir).LedgerPath(tt.date), tt.date)
			require.NoError(t, err)
			assert.Equal(t, collection_state.StatusFailed, ledger.Status(tt.failedStage))
			assert.NoFileExists(t, artifactPath(t, baseDir, constants.StageExtract, tt.date))
		})
	}
	assert.Len(t, summary.Failed(), 3)

	var completed, failed int
	for _, e := range observer.events {
		switch e.(type) {
		case *events.StageCompleted:
			completed++
		case *events.StageFailed:
			failed++
		}
	}
	assert.Equal(t, len(constants.Stages), completed)
	assert.Equal(t, 3, failed)
}

func TestProcessDate_ExtractFailure(t *testing.T) {
	baseDir := t.TempDir()
	date := "2017-06-30"
	fetcher := newFakeFetcher(t)
	fetcher.archives[date] = buildArchive(t, "README.txt", "no table here")
	p := newTestPipeline(t, baseDir, fetcher)

	res := p.ProcessDate(context.Background(), mustDate(t, date))
	require.Error(t, res.Err)
	assert.Equal(t, constants.StageExtract, res.FailedStage)

	var archiveErr *types.ArchiveError
	require.ErrorAs(t, res.Err, &archiveErr)
	assert.Equal(t, "no csv table found", archiveErr.Reason)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, t.TempDir(), newFakeFetcher(t, "2017-06-30"))
	summary, err := p.Run(ctx, mustDate(t, "2017-06-30"), mustDate(t, "2017-07-01"))
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Empty(t, summary.Dates)
}

func TestRun_EndBeforeStart(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), newFakeFetcher(t))
	_, err := p.Run(context.Background(), mustDate(t, "2017-07-01"), mustDate(t, "2017-06-30"))
	assert.Error(t, err)
}

func TestNew_MissingDeps(t *testing.T) {
	_, err := New(Deps{Layout: filepaths.NewLayout(t.TempDir())})
	assert.ErrorContains(t, err, "fetcher")
}
