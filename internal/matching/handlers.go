package matching

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/imadgeboyega/kiekky-matchcore/internal/auth"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/utils"
)

const msgRetry = "Could not generate matches, please retry"

type Handler struct {
	engine   *Engine
	scorer   *Scorer
	learner  *Learner
	detector *Detector
	log      *logger.Logger
}

func NewHandler(engine *Engine, scorer *Scorer, learner *Learner, detector *Detector, log *logger.Logger) *Handler {
	return &Handler{engine: engine, scorer: scorer, learner: learner, detector: detector, log: log}
}

// respondError maps the error taxonomy onto HTTP statuses. fallback is shown
// for dependency and unexpected failures.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, ErrForbidden.Error())
	case errors.Is(err, ErrValidation):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDependency):
		h.log.Warn("Dependency failure", "path", r.URL.Path, "error", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, fallback)
	default:
		h.log.Error("Request failed", "path", r.URL.Path, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return userID, ok
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryList(r *http.Request, key string) []string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func queryBool(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func filtersFromQuery(r *http.Request) *RecommendationFilters {
	f := &RecommendationFilters{
		AgeMin:       queryInt(r, "ageMin", 0),
		AgeMax:       queryInt(r, "ageMax", 0),
		Districts:    queryList(r, "districts"),
		Education:    queryList(r, "education"),
		Sect:         r.URL.Query().Get("sect"),
		VerifiedOnly: queryBool(r, "verifiedOnly"),
		HasPhoto:     queryBool(r, "hasPhoto"),
	}
	if f.AgeMin == 0 && f.AgeMax == 0 && f.Districts == nil && f.Education == nil &&
		f.Sect == "" && f.VerifiedOnly == nil && f.HasPhoto == nil {
		return nil
	}
	return f
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	filters := filtersFromQuery(r)
	if filters != nil {
		if err := utils.ValidateStruct(filters); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	recs, err := h.engine.GetPersonalizedRecommendations(r.Context(), userID, queryInt(r, "limit", DefaultLimit), filters)
	if err != nil {
		h.respondError(w, r, err, msgRetry)
		return
	}
	utils.RespondWithData(w, http.StatusOK, recs)
}

func (h *Handler) GetCachedRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	recs, err := h.engine.GetCachedRecommendations(r.Context(), userID, queryInt(r, "maxAgeHours", 24))
	if err != nil {
		h.respondError(w, r, err, msgRetry)
		return
	}
	utils.RespondWithData(w, http.StatusOK, recs)
}

func (h *Handler) RefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	recs, err := h.engine.RefreshRecommendations(r.Context(), userID, queryInt(r, "limit", DefaultLimit))
	if err != nil {
		h.respondError(w, r, err, msgRetry)
		return
	}
	utils.RespondWithData(w, http.StatusOK, recs)
}

func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	trending, err := h.engine.GetTrendingMatches(r.Context(), userID, queryInt(r, "limit", DefaultLimit))
	if err != nil {
		h.respondError(w, r, err, msgRetry)
		return
	}
	utils.RespondWithData(w, http.StatusOK, trending)
}

func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	cs, err := h.scorer.CompatibilityFor(r.Context(), userID, chi.URLParam(r, "userId"))
	if err != nil {
		h.respondError(w, r, err, "Could not calculate compatibility, please retry")
		return
	}
	utils.RespondWithData(w, http.StatusOK, cs)
}

func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var dto InteractionDTO
	if err := utils.DecodeJSON(r, &dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.learner.RecordInteraction(r.Context(), Interaction{
		UserID:           userID,
		TargetUserID:     dto.TargetUserID,
		Type:             InteractionType(dto.Type),
		TargetAge:        dto.TargetAge,
		TargetDistrict:   dto.TargetDistrict,
		TargetEducation:  dto.TargetEducation,
		TargetOccupation: dto.TargetOccupation,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to record interaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var dto FeedbackDTO
	if err := utils.DecodeJSON(r, &dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.learner.RecordFeedback(r.Context(), userID, dto.MatchUserID, Feedback(dto.Feedback), dto.Reasons); err != nil {
		h.respondError(w, r, err, "Failed to record feedback")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetLearningData(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ld, err := h.learner.GetLearningData(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err, "Failed to load preferences")
		return
	}
	utils.RespondWithData(w, http.StatusOK, ld)
}

// InterestAccepted runs after the caller accepted an interest from senderId
func (h *Handler) InterestAccepted(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var dto InterestAcceptedDTO
	if err := utils.DecodeJSON(r, &dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	matched, err := h.detector.CheckAndCreateMutualMatch(r.Context(), userID, dto.SenderID)
	if err != nil {
		h.respondError(w, r, err, "Failed to check mutual match")
		return
	}
	in, err := h.detector.acceptedInterest(r.Context(), dto.SenderID, userID)
	switch {
	case err != nil:
		h.log.Warn("Failed to resolve accepted interest", "sender_id", dto.SenderID, "error", err)
	case in != nil:
		if _, err := h.learner.RecordInterestOutcome(r.Context(), in); err != nil {
			h.log.Warn("Failed to record interest outcome", "sender_id", dto.SenderID, "interest_id", in.ID, "error", err)
		}
	}
	utils.RespondWithData(w, http.StatusOK, InterestAcceptedResponse{Matched: matched})
}

func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	matches, err := h.detector.GetUserMatches(r.Context(), userID, MatchStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.respondError(w, r, err, "Failed to get matches")
		return
	}
	utils.RespondWithData(w, http.StatusOK, matches)
}

func (h *Handler) UpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var dto UpdateMatchStatusDTO
	if err := utils.DecodeJSON(r, &dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.detector.UpdateMatchStatus(r.Context(), chi.URLParam(r, "id"), userID, MatchStatus(dto.Status))
	if err != nil {
		h.respondError(w, r, err, "Failed to update match")
		return
	}
	utils.RespondWithData(w, http.StatusOK, m)
}

func (h *Handler) BatchMutualMatches(w http.ResponseWriter, r *http.Request) {
	var dto BatchMutualMatchDTO
	if err := utils.DecodeJSON(r, &dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondWithData(w, http.StatusOK, h.detector.BatchProcessMutualMatches(r.Context(), dto.UserIDs))
}

func (h *Handler) CleanupRecommendations(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CleanupExpired(r.Context()); err != nil {
		h.respondError(w, r, err, "Cleanup failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
