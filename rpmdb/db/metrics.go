package db

import (
	"errors"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/fprint"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexLookups counts secondary index lookups by tag and result.
var IndexLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rpmdb",
	Subsystem: "index",
	Name:      "lookups",
	Help:      "Secondary index lookups by tag and result.",
}, []string{"tag", "result"})

// HeaderCacheLookups counts decoded header cache lookups, labelled "hit" or
// "miss".
var HeaderCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rpmdb",
	Subsystem: "header",
	Name:      "cache_lookups",
	Help:      "Decoded header cache lookups by result.",
}, []string{"result"})

// RegisterMetrics registers the handle collectors along with the fingerprint
// ones.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{IndexLookups, HeaderCacheLookups} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return fprint.RegisterMetrics(reg)
}
