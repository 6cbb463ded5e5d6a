package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"edupulse/internal/auth"
)

// RegisterTeacher creates an account and returns a token pair.
func (h *Handler) RegisterTeacher(c *gin.Context) {
	var req auth.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// Login exchanges credentials for a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginInput
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// SetSecurityPassword sets or changes the teacher's security password.
func (h *Handler) SetSecurityPassword(c *gin.Context) {
	var req auth.SecurityInput
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Auth.SetSecurityPassword(c.Request.Context(), auth.OwnerID(c), req); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// VerifySecurity checks a security password without changing anything.
func (h *Handler) VerifySecurity(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ok, err := h.Auth.VerifySecurity(c.Request.Context(), auth.OwnerID(c), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": ok})
}
