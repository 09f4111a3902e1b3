package constants

// pipeline stages, in execution order
const (
	StageFetch      = "fetch"
	StageExtract    = "extract"
	StageConvert    = "convert"
	StageFilterBots = "filter_bots"
	StageEnrich     = "enrich"
	StageFinalize   = "finalize"
)

// Stages is the fixed stage order for a single date
var Stages = []string{
	StageFetch,
	StageExtract,
	StageConvert,
	StageFilterBots,
	StageEnrich,
	StageFinalize,
}

// directory layout, relative to the base directory
const (
	DownloadsDir  = "downloads"
	ExtractedDir  = "extracted"
	ConvertedDir  = "converted"
	NoBotsDir     = "no_bots"
	IpEnrichedDir = "ip_enriched"
	OutputDir     = "output"
	StateDir      = "state"
)

// DateFormat is the layout used for artifact names and CLI dates
const DateFormat = "2006-01-02"
