package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/calder-wren/pagepermsbackend/repository"
	"github.com/golang-jwt/jwt/v5"
)

// AuthHandler exchanges credentials for bearer tokens. Everything past this
// point treats identity as established; the permission overlay only does
// authorization.
type AuthHandler struct {
	UserRepo  repository.UserRepository
	JWTSecret []byte
	TokenTTL  time.Duration
}

func NewAuthHandler(userRepo repository.UserRepository, jwtSecret []byte, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{UserRepo: userRepo, JWTSecret: jwtSecret, TokenTTL: tokenTTL}
}

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "bad-request", "Invalid request payload")
		return
	}

	user, err := h.UserRepo.GetByUsername(payload.Username)
	if err != nil {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid username or password")
		return
	}

	if !user.CheckPassword(payload.Password) {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid username or password")
		return
	}

	expirationTime := time.Now().Add(h.TokenTTL)
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(user.ID),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.JWTSecret)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResponse{
		Token:     tokenString,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: expirationTime,
	})
}
