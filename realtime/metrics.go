package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_realtime_clients",
		Help: "Websocket clients connected to this instance.",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_realtime_events_total",
		Help: "Events delivered to local clients, by kind.",
	}, []string{"kind"})
)
