package bot_filter

import (
	"github.com/turbot/edgar-log-pipeline/types"
)

// IpStats holds the per-day request statistics of a single address
type IpStats struct {
	Ip string
	// total requests for the day
	Requests int
	// the largest number of requests in any one-minute bucket
	MaxRequestsPerMinute int
	// the largest number of distinct non-null CIKs in any one-minute bucket
	MaxCiksPerMinute int
}

type minuteBucket struct {
	requests int
	ciks     map[int64]struct{}
}

// ComputeStats computes the statistics of every address in records.
// Buckets are whole minutes of the record timestamp.
func ComputeStats(records []types.LogRecord) map[string]*IpStats {
	type bucketKey struct {
		ip     string
		minute int64
	}
	buckets := make(map[bucketKey]*minuteBucket)
	stats := make(map[string]*IpStats)

	for _, r := range records {
		s, ok := stats[r.Ip]
		if !ok {
			s = &IpStats{Ip: r.Ip}
			stats[r.Ip] = s
		}
		s.Requests++

		key := bucketKey{ip: r.Ip, minute: r.Timestamp.Unix() / 60}
		b, ok := buckets[key]
		if !ok {
			b = &minuteBucket{ciks: make(map[int64]struct{})}
			buckets[key] = b
		}
		b.requests++
		if r.Cik != nil {
			b.ciks[*r.Cik] = struct{}{}
		}

		if b.requests > s.MaxRequestsPerMinute {
			s.MaxRequestsPerMinute = b.requests
		}
		if len(b.ciks) > s.MaxCiksPerMinute {
			s.MaxCiksPerMinute = len(b.ciks)
		}
	}
	return stats
}
