package bot_filter

import "fmt"

// Default RPV thresholds, from Ryans (2017), "Using the EDGAR Log File Data Set".
const (
	DefaultMaxRequestsPerMinute = 25
	DefaultMaxCiksPerMinute     = 3
	DefaultMaxRequestsPerDay    = 500
)

// signals an address can trigger
const (
	SignalRequests = "R"
	SignalCiks     = "P"
	SignalVolume   = "V"
)

// Thresholds of the RPV heuristic. Each is exceeded only when strictly greater.
type Thresholds struct {
	MaxRequestsPerMinute int
	MaxCiksPerMinute     int
	MaxRequestsPerDay    int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxRequestsPerMinute: DefaultMaxRequestsPerMinute,
		MaxCiksPerMinute:     DefaultMaxCiksPerMinute,
		MaxRequestsPerDay:    DefaultMaxRequestsPerDay,
	}
}

func (t Thresholds) String() string {
	return fmt.Sprintf("R>%d/min P>%d/min V>%d/day", t.MaxRequestsPerMinute, t.MaxCiksPerMinute, t.MaxRequestsPerDay)
}

// Signals returns the signals s triggers, in RPV order
func (t Thresholds) Signals(s *IpStats) []string {
	var res []string
	if s.MaxRequestsPerMinute > t.MaxRequestsPerMinute {
		res = append(res, SignalRequests)
	}
	if s.MaxCiksPerMinute > t.MaxCiksPerMinute {
		res = append(res, SignalCiks)
	}
	if s.Requests > t.MaxRequestsPerDay {
		res = append(res, SignalVolume)
	}
	return res
}

// IsBot returns true if any of the RPV signals fires
func (t Thresholds) IsBot(s *IpStats) bool {
	return len(t.Signals(s)) > 0
}
