package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bindsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oktaldap_binds_total",
		Help: "Bind attempts by identity kind and outcome.",
	}, []string{"kind", "result"})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oktaldap_searches_total",
		Help: "Search requests by outcome.",
	}, []string{"result"})
)
