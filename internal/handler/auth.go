package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"orderdesk/internal/auth"
	"orderdesk/internal/middleware"
	"orderdesk/internal/store"
)

type AuthHandler struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func providerError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": message, "code": code})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		providerError(c, http.StatusBadRequest, auth.CodeMissingCredentials, "Invalid request")
		return
	}

	email := auth.NormalizeEmail(body.Email)
	if !auth.ValidEmail(email) {
		providerError(c, http.StatusBadRequest, auth.CodeInvalidEmail, "Invalid email")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if errors.Is(err, auth.ErrWeakPassword) {
		providerError(c, http.StatusBadRequest, auth.CodeWeakPassword, err.Error())
		return
	}
	if err != nil {
		providerError(c, http.StatusInternalServerError, auth.CodeInternal, "Password hashing failed")
		return
	}

	account, err := h.Store.CreateAccount(email, hash, time.Now().UnixMilli())
	if errors.Is(err, store.ErrEmailInUse) {
		providerError(c, http.StatusConflict, auth.CodeEmailAlreadyInUse, "Email already in use")
		return
	}
	if err != nil {
		providerError(c, http.StatusInternalServerError, auth.CodeInternal, "Account creation failed")
		return
	}

	log.Printf("account registered: %s", account.ID)
	c.JSON(http.StatusOK, gin.H{"id": account.ID, "email": account.Email})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		providerError(c, http.StatusBadRequest, auth.CodeMissingCredentials, "Invalid request")
		return
	}
	if body.Email == "" || body.Password == "" {
		providerError(c, http.StatusBadRequest, auth.CodeMissingCredentials, "Email and password are required")
		return
	}

	email := auth.NormalizeEmail(body.Email)
	if !auth.ValidEmail(email) {
		providerError(c, http.StatusBadRequest, auth.CodeInvalidEmail, "Invalid email")
		return
	}

	account, ok := h.Store.GetAccountByEmail(email)
	if !ok {
		providerError(c, http.StatusUnauthorized, auth.CodeUserNotFound, "User not found")
		return
	}
	if !auth.CheckPassword(account.PasswordHash, body.Password) {
		providerError(c, http.StatusUnauthorized, auth.CodeWrongPassword, "Wrong password")
		return
	}

	token, err := auth.CreateToken(account.ID, account.Email, h.TokenConfig)
	if err != nil {
		providerError(c, http.StatusInternalServerError, auth.CodeInternal, "Token creation failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	h.Store.RevokeToken(claims.ID, claims.ExpiresAtMillis(), time.Now().UnixMilli())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": claims.UserID, "email": claims.Email})
}
