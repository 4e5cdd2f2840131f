package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/marketscout/internal/seed"
	"github.com/kalambet/marketscout/internal/storage"
)

const maxSearchLimit = 100

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources := deps.Sources
		if sources == nil {
			sources = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": deps.Version,
			"store":   deps.StoreMode,
			"sources": sources,
		})
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query parameter q is required")
			return
		}
		res := deps.Search.Resolve(r.Context(), q)
		res.Results = trimResults(res.Results, parseIntParam(r, "limit", 0, maxSearchLimit))
		writeJSON(w, http.StatusOK, searchResponse{Result: res, Count: len(res.Results)})
	}
}

func handleTrends(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("type")
		if kind == "" {
			kind = "daily"
		}
		writeJSON(w, http.StatusOK, deps.Trends.GetTrends(r.Context(), kind))
	}
}

func handleTriggerRefresh(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := deps.Refresh.Trigger(r.Context())
		if res.AlreadyRunning {
			writeJSON(w, http.StatusOK, map[string]any{
				"started":        false,
				"alreadyRunning": true,
				"message":        "already refreshing",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"started":        true,
			"alreadyRunning": false,
			"message":        "refresh started",
		})
	}
}

func handleStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Refresh.Status(r.Context()))
	}
}

func handleMarketStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Insights.MarketStats(r.Context()))
	}
}

func handleKeywords(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Insights.TrendingKeywords(r.Context()))
	}
}

func handleRecommendations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		writeJSON(w, http.StatusOK, deps.Insights.Recommend(r.Context(), q.Get("budget"), q.Get("category")))
	}
}

func handleDetails(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "id is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Insights.Details(r.Context(), id))
	}
}

func handleListWatchlist(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Watchlist.Watchlist(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list watchlist: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleAddWatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var item storage.WatchItem
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(item.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}
		saved, err := deps.Watchlist.AddWatch(r.Context(), item)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save watchlist item: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleRemoveWatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := deps.Watchlist.RemoveWatch(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "watchlist item not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete watchlist item: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleSeed(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSeedBodySize)
		defer r.Body.Close()

		raws, err := seed.Decode(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, seed.Load(r.Context(), deps.Products, raws, parseBoolParam(r, "force")))
	}
}
