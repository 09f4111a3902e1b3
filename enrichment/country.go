package enrichment

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/turbot/edgar-log-pipeline/constants"
	"github.com/turbot/edgar-log-pipeline/logging"
	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/types"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

//go:embed country_mapping.yaml
var defaultCountryMapping []byte

// StandardizeStats describes the outcome of standardizing one table
type StandardizeStats struct {
	Rows     int
	Mapped   int
	Unmapped []string
}

func (s *StandardizeStats) Counts() map[string]int {
	return map[string]int{
		"rows":     s.Rows,
		"mapped":   s.Mapped,
		"unmapped": len(s.Unmapped),
	}
}

// CountryStandardizer maps raw country names and codes to canonical country names
type CountryStandardizer struct {
	mapping map[string]string

	warnedLock sync.Mutex
	warned     map[string]struct{}
}

// NewCountryStandardizer builds the mapping from the embedded table, extended (and overridden)
// by any extra YAML files. Each file maps a canonical name to a list of aliases.
func NewCountryStandardizer(extraMappingFiles ...string) (*CountryStandardizer, error) {
	c := &CountryStandardizer{
		mapping: make(map[string]string),
		warned:  make(map[string]struct{}),
	}
	if err := c.addMapping(defaultCountryMapping); err != nil {
		return nil, fmt.Errorf("invalid embedded country mapping: %w", err)
	}
	for _, path := range extraMappingFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read country mapping file: %w", err)
		}
		if err := c.addMapping(data); err != nil {
			return nil, fmt.Errorf("invalid country mapping file %s: %w", path, err)
		}
	}
	return c, nil
}

func (c *CountryStandardizer) addMapping(data []byte) error {
	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return err
	}
	for canonical, aliases := range table {
		canonical = strings.TrimSpace(canonical)
		if canonical == "" {
			return fmt.Errorf("empty canonical country name")
		}
		c.mapping[normalizeCountry(canonical)] = canonical
		for _, alias := range aliases {
			c.mapping[normalizeCountry(alias)] = canonical
		}
	}
	return nil
}

func normalizeCountry(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Standardize returns the canonical name for raw and whether it was mapped.
// The unknown sentinel is passed through as mapped. An unmapped name is returned
// unchanged and logged once.
func (c *CountryStandardizer) Standardize(ctx context.Context, raw string) (string, bool) {
	if raw == constants.UnknownLocation {
		return raw, true
	}
	if canonical, ok := c.mapping[normalizeCountry(raw)]; ok {
		return canonical, true
	}

	c.warnedLock.Lock()
	defer c.warnedLock.Unlock()
	if _, ok := c.warned[raw]; !ok {
		c.warned[raw] = struct{}{}
		logging.FromContext(ctx).Warn("Could not standardize country name", "country_name", raw)
	}
	return raw, false
}

// StandardizeRecords rewrites the country name of every record in place
func (c *CountryStandardizer) StandardizeRecords(ctx context.Context, records []types.EnrichedRecord) *StandardizeStats {
	stats := &StandardizeStats{Rows: len(records)}
	unmapped := make(map[string]struct{})
	for i := range records {
		canonical, ok := c.Standardize(ctx, records[i].CountryName)
		if !ok {
			unmapped[records[i].CountryName] = struct{}{}
			continue
		}
		if canonical != records[i].CountryName {
			stats.Mapped++
		}
		records[i].CountryName = canonical
	}
	stats.Unmapped = maps.Keys(unmapped)
	sort.Strings(stats.Unmapped)
	return stats
}

// StandardizeFile reads an enriched table, standardizes country names and writes the result to outPath
func (c *CountryStandardizer) StandardizeFile(ctx context.Context, inPath, outPath string) (*StandardizeStats, error) {
	records, err := schema.ReadParquet[types.EnrichedRecord](inPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := c.StandardizeRecords(ctx, records)
	if err := schema.WriteParquet(outPath, records); err != nil {
		return stats, err
	}

	logging.FromContext(ctx).Info("Standardized country names", "input", inPath, "rows", stats.Rows, "mapped", stats.Mapped, "unmapped", stats.Unmapped)
	return stats, nil
}
