package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edupulse/internal/attendance"
	"edupulse/internal/auth"
	"edupulse/internal/model"
	"edupulse/internal/photostore"
)

// Sheet returns the marking sheet for ?date=YYYY-MM-DD, today by default.
func (h *Handler) Sheet(c *gin.Context) {
	date := model.DateOf(time.Now())
	if q := c.Query("date"); q != "" {
		d, err := model.ParseDate(q)
		if err != nil {
			h.fail(c, err)
			return
		}
		date = d
	}
	sheet, err := h.Marking.Sheet(c.Request.Context(), auth.OwnerID(c), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

// SaveMarks stores manual marks.
func (h *Handler) SaveMarks(c *gin.Context) {
	var req attendance.MarksInput
	if !bindJSON(c, &req) {
		return
	}
	saved, err := h.Marking.SaveMarks(c.Request.Context(), auth.OwnerID(c), req)
	h.saved(c, saved, err)
}

// MarkAllPresent marks the whole roster present.
func (h *Handler) MarkAllPresent(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if !bindJSON(c, &req) {
		return
	}
	saved, err := h.Marking.MarkAllPresent(c.Request.Context(), auth.OwnerID(c), req.Date)
	h.saved(c, saved, err)
}

func (h *Handler) saved(c *gin.Context, saved int, err error) {
	var partial *attendance.SaveError
	if errors.As(err, &partial) {
		h.Log.Error("attendance save interrupted", zap.Int("saved", partial.Saved),
			zap.String("student", partial.StudentID), zap.Error(partial.Err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save attendance", "saved": partial.Saved})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

// Today reports whether today's register has been taken.
func (h *Handler) Today(c *gin.Context) {
	updated, err := h.Marking.UpdatedToday(c.Request.Context(), auth.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

type photoResponse struct {
	attendance.PhotoResult
	Error string `json:"error,omitempty"`
}

// MarkFromPhoto reads a register photo synchronously.
func (h *Handler) MarkFromPhoto(c *gin.Context) {
	var req attendance.PhotoRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Photos.Mark(c.Request.Context(), auth.OwnerID(c), req)
	if err == nil {
		c.JSON(http.StatusOK, photoResponse{PhotoResult: res})
		return
	}
	code := statusOf(err)
	msg := err.Error()
	switch code {
	case http.StatusInternalServerError:
		h.Log.Error("photo marking failed", zap.Error(err))
		msg = "internal server error"
	case http.StatusBadGateway:
		h.Log.Warn("photo marking gateway failure", zap.Error(err))
		msg = "AI service unavailable, please try again later"
	}
	c.JSON(code, photoResponse{PhotoResult: res, Error: msg})
}

// SubmitPhotoJob stores an uploaded register photo and queues it for the worker.
func (h *Handler) SubmitPhotoJob(c *gin.Context) {
	if h.PhotoStore == nil || h.Jobs == nil {
		h.fail(c, photostore.ErrNotConfigured)
		return
	}
	ctx := c.Request.Context()
	owner := auth.OwnerID(c)
	date, err := model.ParseDate(c.PostForm("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	data, contentType, err := readUpload(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}
	url, err := h.PhotoStore.Put(ctx, "registers/"+owner, data, contentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	job, err := h.Jobs.Submit(ctx, owner, date.String(), url)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

// GetPhotoJob returns a queued job and, once processed, its result.
func (h *Handler) GetPhotoJob(c *gin.Context) {
	if h.Jobs == nil {
		h.fail(c, photostore.ErrNotConfigured)
		return
	}
	job, err := h.Jobs.Get(c.Request.Context(), auth.OwnerID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
