package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the cookie the dashboard session lives in.
const SessionName = "dashboard_session"

// Store holds the session store configured by main. The identity provider
// that populates it is external to this service.
var Store sessions.Store

func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := Store.Get(r, SessionName)
		if err != nil {
			http.Error(w, "Not Authorized", http.StatusInternalServerError)
			return
		}

		userID, ok := session.Values["user_id"]
		if !ok || userID == "" {
			http.Error(w, "Not Authorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), "userID", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
