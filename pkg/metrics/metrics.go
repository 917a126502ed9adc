// Package metrics holds the prometheus collectors exported by gns3cp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultError    = "error"
)

var (
	// APIRequests counts requests issued to the GNS3 server.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gns3cp_api_requests_total",
			Help: "Total number of requests sent to the GNS3 server.",
		},
		[]string{"method", "code"},
	)

	// LinkAttempts counts link-create attempts made while connecting a node
	// to a switch, by outcome.
	LinkAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gns3cp_link_attempts_total",
			Help: "Total number of link-create attempts against shared switches.",
		},
		[]string{"result"},
	)

	// Deployments counts finished deploy calls by outcome
	// ("succeeded", "compensated", "cancelled", "failed").
	Deployments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gns3cp_deployments_total",
			Help: "Total number of deployments by outcome.",
		},
		[]string{"outcome"},
	)

	// CacheLookups counts compute/template name lookups served by the cache.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gns3cp_cache_lookups_total",
			Help: "Total number of compute and template lookups, by cache result.",
		},
		[]string{"type", "result"},
	)

	// Operations counts provider operations (deploy, power_on, prepare_infra,
	// ...) by result.
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gns3cp_operations_total",
			Help: "Total number of provider operations, by operation and result.",
		},
		[]string{"operation", "result"},
	)
)
