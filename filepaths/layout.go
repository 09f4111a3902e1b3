package filepaths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/turbot/edgar-log-pipeline/constants"
)

// Layout resolves the on-disk location of every artifact the pipeline produces.
// All paths are relative to BaseDir.
type Layout struct {
	BaseDir string
}

func NewLayout(baseDir string) Layout {
	return Layout{BaseDir: baseDir}
}

// Ensure creates every directory of the layout
func (l Layout) Ensure() error {
	dirs := []string{
		filepath.Join(l.BaseDir, constants.DownloadsDir),
		filepath.Join(l.BaseDir, constants.ExtractedDir),
		filepath.Join(l.BaseDir, constants.ConvertedDir),
		filepath.Join(l.BaseDir, constants.NoBotsDir, constants.IpEnrichedDir),
		filepath.Join(l.BaseDir, constants.OutputDir),
		filepath.Join(l.BaseDir, constants.StateDir),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", d, err)
		}
	}
	return nil
}

// ArtifactPath returns the path of the artifact the given stage produces for date
func (l Layout) ArtifactPath(stage, date string) (string, error) {
	switch stage {
	case constants.StageFetch:
		return filepath.Join(l.BaseDir, constants.DownloadsDir, date+".zip"), nil
	case constants.StageExtract:
		return filepath.Join(l.BaseDir, constants.ExtractedDir, date+".csv"), nil
	case constants.StageConvert:
		return filepath.Join(l.BaseDir, constants.ConvertedDir, date+".parquet"), nil
	case constants.StageFilterBots:
		return filepath.Join(l.BaseDir, constants.NoBotsDir, date+".parquet"), nil
	case constants.StageEnrich:
		return filepath.Join(l.BaseDir, constants.NoBotsDir, constants.IpEnrichedDir, date+".parquet"), nil
	case constants.StageFinalize:
		return filepath.Join(l.BaseDir, constants.OutputDir, date+".parquet"), nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

// LedgerPath returns the path of the stage ledger for date
func (l Layout) LedgerPath(date string) string {
	return filepath.Join(l.BaseDir, constants.StateDir, date+".json")
}
