package fprint

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// DirCacheLookups counts directory identity cache lookups, labelled "hit"
// or "miss".
var DirCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rpmdb",
	Subsystem: "fingerprint",
	Name:      "dir_cache_lookups",
	Help:      "Directory identity cache lookups by result.",
}, []string{"result"})

// ProbeCalls counts filesystem probes made while walking up to an existing
// directory.
var ProbeCalls = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "rpmdb",
	Subsystem: "fingerprint",
	Name:      "probes",
	Help:      "Filesystem probes issued while resolving directories.",
})

// ProbeFailures counts probes that failed for a reason other than a missing
// path. Such directories are treated as missing.
var ProbeFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "rpmdb",
	Subsystem: "fingerprint",
	Name:      "probe_failures",
	Help:      "Probes that failed for a reason other than a missing path.",
})

// RegisterMetrics registers the fingerprint collectors. Registering twice
// with the same registerer is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{DirCacheLookups, ProbeCalls, ProbeFailures} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
