package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "automod_scan_duration_sec",
	Help: "Duration of synchronous automod evaluation",
}, []string{"kind"})

var scanCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_scan_processed",
	Help: "Number of messages and joins evaluated, by outcome",
}, []string{"kind", "outcome"})

var triggerMatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_trigger_matches",
	Help: "Number of trigger fires recorded in the strike ledger",
}, []string{"type"})

var actionRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_actions_run",
	Help: "Number of dispatched actions, by result",
}, []string{"type", "result"})

var dispatchDroppedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_dispatch_dropped",
	Help: "Number of dispatch batches that never started",
}, []string{"reason"})

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_cache_lookups",
	Help: "Rule cache lookups, by kind and hit or miss",
}, []string{"kind", "result"})
