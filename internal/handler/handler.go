package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edupulse/internal/aiclient"
	"edupulse/internal/assistant"
	"edupulse/internal/attendance"
	"edupulse/internal/auth"
	"edupulse/internal/insights"
	"edupulse/internal/model"
	"edupulse/internal/notify"
	"edupulse/internal/photostore"
	"edupulse/internal/roster"
	"edupulse/internal/store"
	"edupulse/internal/validation"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Healthy(ctx context.Context) bool
}

// Deps are the services behind the HTTP API.
type Deps struct {
	Auth       *auth.Service
	Issuer     auth.Issuer
	Roster     *roster.Service
	Importer   *roster.Importer
	Marking    *attendance.Service
	Photos     *attendance.PhotoMarker
	Jobs       *attendance.Jobs
	Insights   *insights.Service
	Assistant  *assistant.Service
	Notify     *notify.Service
	PhotoStore photostore.Store // nil when not configured
	DB         Checker
	Redis      Checker // nil when Redis is not used
	Log        *zap.Logger
}

// Handler serves the JSON API.
type Handler struct {
	Deps
}

// New creates a handler.
func New(d Deps) *Handler {
	return &Handler{Deps: d}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/register", h.RegisterTeacher)
	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/refresh", h.Refresh)

	api := v1.Group("", auth.TeacherAuth(h.Issuer))
	api.PUT("/security/password", h.SetSecurityPassword)
	api.POST("/security/verify", h.VerifySecurity)

	api.GET("/students", h.ListStudents)
	api.POST("/students", h.CreateStudent)
	api.GET("/students/import/template", h.ImportTemplate)
	api.POST("/students/import", h.ImportStudents)
	api.GET("/students/:id", h.GetStudent)
	api.PATCH("/students/:id", h.UpdateStudent)
	api.DELETE("/students/:id", h.DeleteStudent)
	api.POST("/students/:id/photo", h.UploadStudentPhoto)
	api.GET("/students/:id/attendance", h.StudentAttendance)
	api.GET("/students/:id/attendance/export", h.ExportStudentAttendance)

	api.GET("/attendance/sheet", h.Sheet)
	api.POST("/attendance/marks", h.SaveMarks)
	api.POST("/attendance/all-present", h.MarkAllPresent)
	api.GET("/attendance/today", h.Today)
	api.POST("/attendance/photo", h.MarkFromPhoto)
	api.POST("/attendance/photo-jobs", h.SubmitPhotoJob)
	api.GET("/attendance/photo-jobs/:id", h.GetPhotoJob)

	api.GET("/insights", h.Summary)
	api.POST("/insights/ai", h.Narrative)
	api.GET("/dashboard", h.Dashboard)
	api.POST("/assistant/chat", h.Chat)
	api.GET("/notifications", h.Notifications)
}

// Healthz reports database and Redis reachability.
func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbOK := h.DB != nil && h.DB.Healthy(ctx)
	redisState := "disabled"
	redisOK := true
	if h.Redis != nil {
		redisOK = h.Redis.Healthy(ctx)
		redisState = upDown(redisOK)
	}
	status, code := "ok", http.StatusOK
	if !dbOK || !redisOK {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "db": upDown(dbOK), "redis": redisState})
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

// bindJSON decodes the body into dst and answers 400 on malformed JSON.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if fields := validation.Fields(err); fields != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// readUpload reads a multipart file field, refusing anything over the photo ceiling.
func readUpload(c *gin.Context, field string) ([]byte, string, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return nil, "", errMissingFile{field: field}
	}
	defer file.Close()
	if header.Size > photostore.MaxPhotoBytes {
		return nil, "", photostore.ErrTooLarge
	}
	data, err := readLimited(file, photostore.MaxPhotoBytes)
	if err != nil {
		return nil, "", err
	}
	return data, header.Header.Get("Content-Type"), nil
}

func readLimited(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, photostore.ErrTooLarge
	}
	return data, nil
}

type errMissingFile struct{ field string }

func (e errMissingFile) Error() string { return e.field + " file is required" }

// fail maps service errors onto HTTP answers. Unknown errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	if fields := validation.Fields(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}
	if code == http.StatusBadGateway {
		h.Log.Warn("upstream failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(code, gin.H{"error": "AI service unavailable, please try again later"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	var missing errMissingFile
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrDuplicateIndex),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, attendance.ErrJobDone):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidRefresh):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrSecurityPassword),
		errors.Is(err, auth.ErrSecurityRequired):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, attendance.ErrInvalidImage),
		errors.Is(err, attendance.ErrImageTooLarge),
		errors.Is(err, attendance.ErrUnknownStudent),
		errors.Is(err, insights.ErrInvalidRange),
		errors.Is(err, insights.ErrInvalidMonth),
		errors.Is(err, roster.ErrEmptyCSV),
		errors.Is(err, roster.ErrMissingHeads),
		errors.Is(err, assistant.ErrNoStudents),
		errors.Is(err, assistant.ErrNoMessages),
		errors.Is(err, assistant.ErrSystemRole),
		errors.Is(err, photostore.ErrUnsupportedType),
		errors.Is(err, photostore.ErrTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, aiclient.ErrGateway),
		errors.Is(err, aiclient.ErrEmptyReply):
		return http.StatusBadGateway
	case errors.Is(err, photostore.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
