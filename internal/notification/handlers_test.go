package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-matchcore/internal/auth"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/utils"
	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

const inboxSecret = "inbox-test-secret"

func TestGetNotifications(t *testing.T) {
	ctx := context.Background()
	sink := NewStoreSink(store.NewMemoryStore())
	for i, n := range []Notification{
		{UserID: "u1", Type: TypeMutualMatch, Title: "match"},
		{UserID: "u1", Type: TypeRecommendationReady, Title: "recs", IsRead: true},
		{UserID: "u2", Type: TypeMutualMatch, Title: "other"},
	} {
		n.CreatedAt = time.Date(2025, 1, 1, i, 0, 0, 0, time.UTC)
		if err := sink.Notify(ctx, n); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	router := mux.NewRouter()
	RegisterRoutes(router, NewHandler(sink, logger.Nop()), auth.NewMiddleware(inboxSecret))

	tok, err := utils.GenerateJWT(&utils.JWTClaims{
		UserID:           "u1",
		Type:             "access",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, inboxSecret)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		authz     string
		wantCode  int
		wantTotal int
	}{
		{"no token", "/api/v1/notifications", "", http.StatusUnauthorized, 0},
		{"all", "/api/v1/notifications", "Bearer " + tok, http.StatusOK, 2},
		{"unread only", "/api/v1/notifications?unread_only=true", "Bearer " + tok, http.StatusOK, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Data InboxResponse `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Data.Total != tt.wantTotal || len(body.Data.Notifications) != tt.wantTotal {
				t.Errorf("total=%d len=%d, want %d", body.Data.Total, len(body.Data.Notifications), tt.wantTotal)
			}
			for _, n := range body.Data.Notifications {
				if n.UserID != "u1" {
					t.Errorf("leaked notification for %s", n.UserID)
				}
			}
		})
	}
}
