package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settingsWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepscout_settings_writes_total",
		Help: "Number of settings documents written",
	})

	settingsMigrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepscout_settings_migrations_total",
		Help: "Number of legacy or malformed settings documents repaired",
	})

	mcpProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepscout_mcp_probes_total",
		Help: "MCP server metadata probes by outcome",
	}, []string{"outcome"})
)
