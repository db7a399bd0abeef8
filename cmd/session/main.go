// This is a **stub session service**, issuing admin JWTs for the
// affiliation service during local development. Real session management
// (login, token refresh, role routing) lives elsewhere.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/eventia/affiliations/internal/affiliation/auth"
)

const (
	defaultPort   = "8081"       // Default port for the session service
	defaultSecret = "jwt_secret" // Secret for signing JWT
)

// TokenResponse represents the response structure
type TokenResponse struct {
	Token string `json:"token"`
}

// tokenHandler generates an admin JWT and returns it in a JSON response
func tokenHandler(w http.ResponseWriter, _ *http.Request) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = defaultSecret
	}

	// Simulate an administrator account
	userID := "12345"

	token, err := auth.GenerateToken(userID, "administrador", secret)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	resp := TokenResponse{Token: token}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(resp)
	if err != nil {
		http.Error(w, "Failed to encode token", http.StatusInternalServerError)
	}
}

func main() {
	port := os.Getenv("SESSION_PORT")
	if port == "" {
		port = defaultPort
	}
	http.HandleFunc("/token", tokenHandler)

	log.Printf("Session service running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}
