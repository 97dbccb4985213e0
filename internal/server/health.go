package server

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// healthThreshold is one workload's minimum acceptable hit rate, checked
// only once the store has seen enough traffic to judge.
type healthThreshold struct {
	store       string
	minHitRate  float64
	minRequests int64
}

// Expensive workloads get stricter floors: a cold ai_response store
// burns real provider spend, rag_results burns vector search.
var healthThresholds = []healthThreshold{
	{cache.StoreAIResponse, 30, 100},
	{cache.StoreRAGResults, 40, 50},
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	st := s.cache.Stats()

	violations := []string{}

	for _, th := range healthThresholds {
		ss, ok := st.Stores[th.store]
		if !ok {
			continue
		}
		if ss.TotalRequests > th.minRequests && ss.HitRatePercent < th.minHitRate {
			violations = append(violations, fmt.Sprintf(
				"store %q hit rate %.1f%% below %.0f%% floor (%d requests)",
				th.store, ss.HitRatePercent, th.minHitRate, ss.TotalRequests))
		}
	}

	for _, name := range storeNames {
		ss, ok := st.Stores[name]
		if !ok || ss.MaxSize == 0 {
			continue
		}
		if float64(ss.Size) > 0.9*float64(ss.MaxSize) {
			violations = append(violations, fmt.Sprintf(
				"store %q at %d/%d entries (over 90%% full)", name, ss.Size, ss.MaxSize))
		}
	}

	status := "healthy"
	if len(violations) > 0 {
		status = "warning"
	}

	writeJSON(ctx, map[string]any{
		"status":             status,
		"version":            s.version,
		"distributed_active": st.DistributedActive,
		"violations":         violations,
	})
}
