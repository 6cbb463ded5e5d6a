package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"edupulse/internal/auth"
	"edupulse/internal/insights"
	"edupulse/internal/photostore"
	"edupulse/internal/roster"
)

// SecurityHeader carries the security password on destructive requests.
const SecurityHeader = "X-Security-Password"

// ListStudents returns the roster, optionally filtered.
func (h *Handler) ListStudents(c *gin.Context) {
	f := roster.Filter{
		Section: c.Query("section"),
		Status:  c.Query("status"),
		Search:  c.Query("search"),
	}
	if g := c.Query("grade"); g != "" {
		grade, err := strconv.Atoi(g)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "grade must be a number"})
			return
		}
		f.Grade = grade
	}
	students, err := h.Roster.List(c.Request.Context(), auth.OwnerID(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// CreateStudent adds one student.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req roster.Input
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.Roster.Create(c.Request.Context(), auth.OwnerID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// GetStudent returns one student.
func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.Roster.Get(c.Request.Context(), auth.OwnerID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateStudent applies a partial update.
func (h *Handler) UpdateStudent(c *gin.Context) {
	var req roster.Patch
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.Roster.Update(c.Request.Context(), auth.OwnerID(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// DeleteStudent removes a student and its attendance; it needs the security password when one is set.
func (h *Handler) DeleteStudent(c *gin.Context) {
	ctx := c.Request.Context()
	owner := auth.OwnerID(c)
	if err := h.Auth.RequireSecurity(ctx, owner, c.GetHeader(SecurityHeader)); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Roster.Delete(ctx, owner, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadStudentPhoto stores a profile photo and links it to the student.
func (h *Handler) UploadStudentPhoto(c *gin.Context) {
	if h.PhotoStore == nil {
		h.fail(c, photostore.ErrNotConfigured)
		return
	}
	ctx := c.Request.Context()
	owner := auth.OwnerID(c)
	id := c.Param("id")
	if _, err := h.Roster.Get(ctx, owner, id); err != nil {
		h.fail(c, err)
		return
	}
	data, contentType, err := readUpload(c, "photo")
	if err != nil {
		h.fail(c, err)
		return
	}
	url, err := h.PhotoStore.Put(ctx, "students/"+owner, data, contentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Roster.SetPhoto(ctx, owner, id, url); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo_url": url})
}

// ImportStudents loads a CSV roster from the multipart "file" field.
func (h *Handler) ImportStudents(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		h.fail(c, errMissingFile{field: "file"})
		return
	}
	defer file.Close()
	res, err := h.Importer.Import(c.Request.Context(), auth.OwnerID(c), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ImportTemplate serves an example CSV.
func (h *Handler) ImportTemplate(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="student_template.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(roster.TemplateCSV))
}

// StudentAttendance returns a student's records and totals for one month.
func (h *Handler) StudentAttendance(c *gin.Context) {
	view, err := h.Insights.StudentMonth(c.Request.Context(), auth.OwnerID(c), c.Param("id"), c.Query("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ExportStudentAttendance downloads a student's month as CSV.
func (h *Handler) ExportStudentAttendance(c *gin.Context) {
	view, err := h.Insights.StudentMonth(c.Request.Context(), auth.OwnerID(c), c.Param("id"), c.Query("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := insights.ExportCSV(view.Records)
	if err != nil {
		h.fail(c, err)
		return
	}
	name := view.Student.IndexNumber + "_attendance_" + view.Month + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
