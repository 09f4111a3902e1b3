package constants

import (
	"log/slog"
	"math"
)

const (
	EnvLogLevel            = "EDGAR_LOG_LEVEL"
	EnvGeolocationDbApiKey = "EDGAR_GEOLOCATION_DB_API_KEY"
	EnvUserAgent           = "EDGAR_USER_AGENT"
)

// LogLevelOff is above every real level so nothing is logged
const LogLevelOff = slog.Level(math.MaxInt32)

const DefaultConfigFileName = "edgar.hcl"
