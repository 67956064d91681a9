package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "relayfeed_ledger_cache_lookups_total",
		Help: "Ledger cache lookups by result (hit, miss)",
	},
	[]string{"result"},
)
