package deduplicator

import (
	"fmt"
	"strings"

	"paper-filter/logger"
	"paper-filter/types"
)

// KeepPolicy selects which record of a duplicate group survives
type KeepPolicy string

const (
	KeepFirst KeepPolicy = "first"
	KeepLast  KeepPolicy = "last"
)

// ParseKeep validates a keep policy string
func ParseKeep(s string) (KeepPolicy, error) {
	switch KeepPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeepFirst:
		return KeepFirst, nil
	case KeepLast:
		return KeepLast, nil
	}
	return "", logger.NewAppErrorWithCode(logger.ErrorTypeConfig,
		fmt.Sprintf("unknown keep policy %q", s), "INVALID_KEEP_POLICY", nil)
}

// KeyFunc extracts the equality key of a record
type KeyFunc func(record types.Record) string

// TitleKey is the default key: the normalized title
func TitleKey(record types.Record) string {
	return NormalizeTitle(record.Title)
}

// ColumnKey builds a key from the normalized values of source columns.
func ColumnKey(columns ...string) KeyFunc {
	return func(record types.Record) string {
		parts := make([]string, len(columns))
		for i, column := range columns {
			parts[i] = NormalizeTitle(record.Get(column))
		}
		if strings.Join(parts, "") == "" {
			return ""
		}
		return strings.Join(parts, "\x1f")
	}
}

// Options controls deduplication
type Options struct {
	Key  KeyFunc
	Keep KeepPolicy
	// GroupBlankKeys treats every blank key as one equality class. When
	// false, records with a blank key are never duplicates of each other.
	GroupBlankKeys bool
}

// DefaultOptions dedupes on normalized title, keeping the first occurrence
func DefaultOptions() Options {
	return Options{Key: TitleKey, Keep: KeepFirst}
}

// Stats contains statistics about a deduplication run
type Stats struct {
	OriginalCount  int `json:"original_count"`
	UniqueCount    int `json:"unique_count"`
	DuplicateCount int `json:"duplicate_count"`
	BlankCount     int `json:"blank_count"`
}

// Deduplicator removes near-duplicate papers from a table
type Deduplicator struct {
	logger *logger.Logger
	opts   Options
}

// NewDeduplicator creates a new deduplicator instance
func NewDeduplicator(opts Options) *Deduplicator {
	return NewDeduplicatorWithLogger(logger.New("deduplicator"), opts)
}

// NewDeduplicatorWithLogger creates a deduplicator writing to the given logger
func NewDeduplicatorWithLogger(log *logger.Logger, opts Options) *Deduplicator {
	if opts.Key == nil {
		opts.Key = TitleKey
	}
	if opts.Keep != KeepLast {
		opts.Keep = KeepFirst
	}
	return &Deduplicator{logger: log, opts: opts}
}

// Deduplicate removes duplicate papers by key
func (d *Deduplicator) Deduplicate(table types.Table) types.Table {
	deduplicated, _ := d.DeduplicateWithStats(table)
	return deduplicated
}

// DeduplicateWithStats returns the deduplicated table along with statistics.
// Kept records retain their original relative order.
func (d *Deduplicator) DeduplicateWithStats(table types.Table) (types.Table, Stats) {
	stats := Stats{OriginalCount: table.Len()}

	if table.Len() == 0 {
		return table.WithRecords([]types.Record{}), stats
	}

	keys := make([]string, table.Len())
	// winner maps a key to the index of the record that survives.
	winner := make(map[string]int, table.Len())
	for i, record := range table.Records {
		key := d.opts.Key(record)
		keys[i] = key
		if key == "" {
			stats.BlankCount++
			if !d.opts.GroupBlankKeys {
				continue
			}
		}
		if _, seen := winner[key]; !seen || d.opts.Keep == KeepLast {
			winner[key] = i
		}
	}

	deduplicated := make([]types.Record, 0, len(winner)+stats.BlankCount)
	for i, record := range table.Records {
		key := keys[i]
		if key == "" && !d.opts.GroupBlankKeys {
			deduplicated = append(deduplicated, record)
			continue
		}
		if winner[key] == i {
			deduplicated = append(deduplicated, record)
			continue
		}
		stats.DuplicateCount++
		d.logger.Debug("Duplicate paper found and removed", map[string]interface{}{
			"record_id": record.ID,
			"key":       key,
			"kept_id":   table.Records[winner[key]].ID,
		})
	}

	stats.UniqueCount = len(deduplicated)

	d.logger.Info("Deduplication completed with stats", map[string]interface{}{
		"original_count":  stats.OriginalCount,
		"unique_count":    stats.UniqueCount,
		"duplicate_count": stats.DuplicateCount,
		"blank_count":     stats.BlankCount,
		"keep":            string(d.opts.Keep),
	})

	return table.WithRecords(deduplicated), stats
}
