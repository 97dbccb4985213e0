package server

import (
	"fmt"
	"math"

	"github.com/valyala/fasthttp"

	"github.com/studyloop/tutor-cache/internal/cache"
	"github.com/studyloop/tutor-cache/pkg/apierr"
)

// statsResponse is the operator stats payload: the manager's nested
// stats plus aggregate totals and tuning recommendations.
type statsResponse struct {
	cache.ManagerStats
	Totals          statsTotals `json:"totals"`
	Recommendations []string    `json:"recommendations"`
}

type statsTotals struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	TotalRequests  int64   `json:"total_requests"`
	HitRatePercent float64 `json:"hit_rate_percent"`
	Entries        int     `json:"entries"`
}

func (s *Server) handleCacheStats(ctx *fasthttp.RequestCtx) {
	st := s.cache.Stats()

	var totals statsTotals
	for _, ss := range st.Stores {
		totals.Hits += ss.Hits
		totals.Misses += ss.Misses
		totals.TotalRequests += ss.TotalRequests
		totals.Entries += ss.Size
	}
	if totals.TotalRequests > 0 {
		// Rounded to two decimals like the per-store rates.
		rate := float64(totals.Hits) / float64(totals.TotalRequests) * 100
		totals.HitRatePercent = math.Round(rate*100) / 100
	}

	writeJSON(ctx, statsResponse{
		ManagerStats:    st,
		Totals:          totals,
		Recommendations: recommendations(st),
	})
}

// recommendations derives tuning hints from the current stats. Each
// store with meaningful traffic and a poor hit rate, or heavy eviction
// churn, gets a line; running without the distributed tier gets one too.
func recommendations(st cache.ManagerStats) []string {
	recs := []string{}

	for _, name := range storeNames {
		ss, ok := st.Stores[name]
		if !ok {
			continue
		}
		if ss.TotalRequests > 100 && ss.HitRatePercent < 30 {
			recs = append(recs, fmt.Sprintf(
				"store %q hit rate is %.1f%% over %d requests; consider longer TTLs or reviewing key parameters",
				name, ss.HitRatePercent, ss.TotalRequests))
		}
		if ss.TotalRequests > 0 && float64(ss.Evictions) > 0.2*float64(ss.TotalRequests) {
			recs = append(recs, fmt.Sprintf(
				"store %q evicted %d entries over %d requests; consider a larger capacity",
				name, ss.Evictions, ss.TotalRequests))
		}
	}

	if !st.DistributedActive {
		recs = append(recs, "distributed tier is inactive; set CACHE_DISTRIBUTED=true to share entries across replicas")
	}

	return recs
}

var storeNames = []string{
	cache.StoreGeneric,
	cache.StoreAIResponse,
	cache.StoreRAGResults,
	cache.StoreDBQuery,
	cache.StoreEmbedding,
	cache.StoreAPIResponse,
}

func (s *Server) handleCacheClear(ctx *fasthttp.RequestCtx) {
	store := string(ctx.QueryArgs().Peek("store"))
	if store == "" {
		s.cache.ClearAll(ctx)
		writeJSON(ctx, map[string]string{"cleared": "all"})
		return
	}

	if err := s.cache.ClearStore(ctx, store); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, err.Error(), apierr.TypeInvalidRequest, apierr.CodeUnknownStore)
		return
	}
	writeJSON(ctx, map[string]string{"cleared": store})
}

func (s *Server) handleCacheCleanup(ctx *fasthttp.RequestCtx) {
	removed := s.cache.CleanupExpired()

	total := 0
	for _, n := range removed {
		total += n
	}
	writeJSON(ctx, map[string]any{
		"removed": removed,
		"total":   total,
	})
}
