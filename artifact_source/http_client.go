package artifact_source

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"golang.org/x/sync/semaphore"
)

// SharedHTTPClient returns the HTTP client used for every remote call the pipeline makes
// (SEC downloads, S3 and the geolocation API). It caches DNS lookups and bounds the
// number of parallel lookups and connections per host.
var SharedHTTPClient = sync.OnceValue(func() *http.Client {
	return NewHTTPClient()
})

func NewHTTPClient() *http.Client {
	// maximum number of parallel DNS lookups
	dnsLookupMaxParallel := readEnvVarToInt("EDGAR_DNS_LOOKUP_MAX_PARALLEL", 25)

	// The DNS cache will be refreshed at this interval.
	// Set to 0 to disable the refresh, -1 to disable the DNS cache completely.
	dnsCacheRefreshIntervalSecs := readEnvVarToInt("EDGAR_DNS_CACHE_REFRESH_INTERVAL_SECS", 300)

	// maximum number of connections per host, 0 for no limit
	httpTransportMaxConnsPerHost := readEnvVarToInt("EDGAR_HTTP_TRANSPORT_MAX_CONNS_PER_HOST", 64)

	timeoutSecs := readEnvVarToInt("EDGAR_HTTP_TIMEOUT_SECS", 600)

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if httpTransportMaxConnsPerHost > 0 {
		tr.MaxConnsPerHost = httpTransportMaxConnsPerHost
	}

	if dnsCacheRefreshIntervalSecs >= 0 {
		resolver := &dnscache.Resolver{}
		if dnsCacheRefreshIntervalSecs > 0 {
			go func() {
				t := time.NewTicker(time.Duration(dnsCacheRefreshIntervalSecs) * time.Second)
				defer t.Stop()
				for range t.C {
					resolver.Refresh(true)
				}
			}()
		}

		sem := semaphore.NewWeighted(int64(dnsLookupMaxParallel))
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}

		tr.DialContext = func(ctx context.Context, network string, addr string) (conn net.Conn, err error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			sem.Release(1)
			if err != nil {
				return nil, err
			}

			// try each address until one connects
			for _, ip := range ips {
				conn, err = dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					break
				}
			}
			return
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   time.Duration(timeoutSecs) * time.Second,
	}
}

func readEnvVarToInt(name string, defaultVal int) int {
	val := defaultVal
	envValue := os.Getenv(name)
	if envValue != "" {
		i, err := strconv.Atoi(envValue)
		if err == nil {
			val = i
		}
	}
	return val
}
