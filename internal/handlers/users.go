package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/driftline/attachkit/internal/auth"
	"github.com/driftline/attachkit/models"
	"gorm.io/gorm"
)

// UserLoginHandler records the session for a dashboard user. The upstream
// identity provider has already authenticated the request; this just upserts
// the user row and stores the id in the session cookie.
func UserLoginHandler(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	email := r.FormValue("email")
	name := r.FormValue("name")
	if email == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}

	var dbUser models.User
	if err := db.Where("email = ?", email).First(&dbUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			dbUser = models.User{Name: name, Email: email}
			if err := db.Create(&dbUser).Error; err != nil {
				log.Println("Failed to create user:", err)
				http.Error(w, "Failed to create user", http.StatusInternalServerError)
				return
			}
		} else {
			log.Println("Database error:", err)
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
	}

	session, err := auth.Store.Get(r, auth.SessionName)
	if err != nil {
		log.Println("Failed to get session:", err)
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	session.Values["user_id"] = dbUser.ID

	if err := session.Save(r, w); err != nil {
		log.Println("Failed to save session:", err)
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dbUser)
}

// GetUserHandler returns the authenticated user's record.
func GetUserHandler(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	var user models.User

	id := r.Context().Value("userID")
	if id == nil {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	result := db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, result.Error.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
