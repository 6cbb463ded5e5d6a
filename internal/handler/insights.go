package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"edupulse/internal/assistant"
	"edupulse/internal/auth"
	"edupulse/internal/insights"
)

// Summary returns the insights panel for ?range=week|month|year.
func (h *Handler) Summary(c *gin.Context) {
	q := insights.Query{Range: c.Query("range"), StudentID: c.Query("student_id")}
	if g := c.Query("grade"); g != "" {
		grade, err := strconv.Atoi(g)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "grade must be a number"})
			return
		}
		q.Grade = grade
	}
	sum, err := h.Insights.Summary(c.Request.Context(), auth.OwnerID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Narrative asks the model to analyse the roster.
func (h *Handler) Narrative(c *gin.Context) {
	n, err := h.Assistant.Narrative(c.Request.Context(), auth.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// Dashboard returns the headline numbers.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.Insights.Dashboard(c.Request.Context(), auth.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Chat answers the teacher's latest chat message.
func (h *Handler) Chat(c *gin.Context) {
	var req assistant.ChatInput
	if !bindJSON(c, &req) {
		return
	}
	reply, err := h.Assistant.Chat(c.Request.Context(), auth.OwnerID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *Handler) Notifications(c *gin.Context) {
	feed, err := h.Notify.Feed(c.Request.Context(), auth.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": feed})
}
