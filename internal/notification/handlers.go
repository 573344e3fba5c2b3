package notification

import (
	"net/http"
	"strconv"

	"github.com/imadgeboyega/kiekky-matchcore/internal/auth"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/utils"
)

const (
	defaultInboxLimit = 20
	maxInboxLimit     = 100
)

type Handler struct {
	inbox *StoreSink
	log   *logger.Logger
}

func NewHandler(inbox *StoreSink, log *logger.Logger) *Handler {
	return &Handler{inbox: inbox, log: log}
}

// InboxResponse is one page of the user's in-app notifications
type InboxResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
}

// GetNotifications lists the authenticated user's inbox, newest first
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	list, total, err := h.inbox.Inbox(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		h.log.Error("Failed to list notifications", "user_id", userID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get notifications")
		return
	}
	if list == nil {
		list = []Notification{}
	}
	utils.RespondWithData(w, http.StatusOK, InboxResponse{Notifications: list, Total: total})
}
