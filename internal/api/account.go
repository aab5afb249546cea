package api

import (
	"errors"
	"net/http"

	"github.com/evogene-server/internal/auth"
	"github.com/evogene-server/internal/logging"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	pair, err := s.deps.Accounts.Register(c.Request.Context(), req)
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Passwords do not match"})
		return
	case errors.Is(err, auth.ErrEmailExists):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already exists"})
		return
	case err != nil:
		logging.FromContext(c.Request.Context(), s.log).WithError(err).Error("Registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"access":  pair.Access,
		"refresh": pair.Refresh,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	user, pair, err := s.deps.Accounts.Login(c.Request.Context(), req)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	case err != nil:
		logging.FromContext(c.Request.Context(), s.log).WithError(err).Error("Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"access":  pair.Access,
		"refresh": pair.Refresh,
		"user":    user.Name,
	})
}

// handleLogout is stateless; clients discard their tokens
func (s *Server) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
