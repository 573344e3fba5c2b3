package matching

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/imadgeboyega/kiekky-matchcore/internal/auth"
)

// RegisterRoutes mounts the matching API on r. requestsPerMinute limits each
// authenticated user; zero disables the limit.
func RegisterRoutes(r chi.Router, handler *Handler, authMiddleware *auth.Middleware, requestsPerMinute int) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		if requestsPerMinute > 0 {
			r.Use(httprate.Limit(requestsPerMinute, time.Minute, httprate.WithKeyFuncs(keyByUser)))
		}

		// Recommendations
		r.Get("/recommendations", handler.GetRecommendations)
		r.Get("/recommendations/cached", handler.GetCachedRecommendations)
		r.Post("/recommendations/refresh", handler.RefreshRecommendations)
		r.Get("/trending", handler.GetTrending)

		// Compatibility
		r.Get("/compatibility/{userId}", handler.GetCompatibility)

		// Learning
		r.Post("/interactions", handler.RecordInteraction)
		r.Post("/feedback", handler.RecordFeedback)
		r.Get("/learning", handler.GetLearningData)

		// Mutual matches
		r.Post("/interests/accepted", handler.InterestAccepted)
		r.Get("/matches", handler.GetMatches)
		r.Patch("/matches/{id}/status", handler.UpdateMatchStatus)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAdmin)
			r.Post("/admin/mutual-matches/batch", handler.BatchMutualMatches)
			r.Post("/admin/recommendations/cleanup", handler.CleanupRecommendations)
		})
	})
}

// keyByUser rate limits per authenticated user, falling back to the client IP
func keyByUser(r *http.Request) (string, error) {
	if userID, ok := auth.GetUserIDFromContext(r.Context()); ok {
		return "user:" + userID, nil
	}
	return httprate.KeyByIP(r)
}
