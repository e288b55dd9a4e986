package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/api/handlers"
	"github.com/Togather-Foundation/trustdirectory/internal/api/middleware"
	"github.com/Togather-Foundation/trustdirectory/internal/config"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/metrics"
	"github.com/Togather-Foundation/trustdirectory/internal/orchestrator"
	"github.com/Togather-Foundation/trustdirectory/internal/search"
	"github.com/Togather-Foundation/trustdirectory/internal/voting"
)

// NewRouter wires the facility search, detail, top-picks, vote, and system
// endpoints (section 6) behind the ambient middleware stack. scheduler may
// be nil (serve only builds one in worker mode), in which case the manual-refresh
// endpoint reports itself unavailable rather than panicking.
func NewRouter(repo facility.Repository, searchSvc *search.Service, voteSvc *voting.Service, scheduler *orchestrator.Scheduler, cfg config.Config, logger zerolog.Logger, version, gitCommit, buildDate string) http.Handler {
	facilitiesHandler := handlers.NewFacilitiesHandler(searchSvc, voteSvc, cfg.Environment)
	systemHandler := handlers.NewSystemHandler(repo, scheduler, cfg.Environment)

	mux := http.NewServeMux()
	mux.Handle("/health", http.HandlerFunc(handlers.Health))
	mux.Handle("/version", VersionHandler(version, gitCommit, buildDate))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/facilities", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(facilitiesHandler.List),
	}))
	mux.Handle("/api/v1/facilities/top-picks", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(facilitiesHandler.TopPicks),
	}))
	mux.Handle("/api/v1/facilities/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(facilitiesHandler.Get),
	}))
	voteRoute := middleware.VoteRequestSize()(http.HandlerFunc(facilitiesHandler.Vote))
	mux.Handle("/api/v1/facilities/{id}/vote", methodMux(map[string]http.Handler{
		http.MethodPost: voteRoute,
	}))

	mux.Handle("/api/v1/system/ingestion", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(systemHandler.Ingestion),
	}))
	mux.Handle("/api/v1/system/refresh", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(systemHandler.Refresh),
	}))

	// Middleware order, innermost first: SecurityHeaders, CORS, HTTP metrics,
	// RequestLogging, Tracing, CorrelationID. CorrelationID runs outermost so
	// every later middleware and handler sees the request-scoped logger.
	handler := http.Handler(mux)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)

	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
