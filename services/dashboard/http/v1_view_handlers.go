package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/catalog"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/chart"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/dashboard"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/hydrofabric"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/session"
)

const renderTimeout = 60 * time.Second

// handleV1Files lists the time slices of the first dataset
// GET /api/v1/sessions/:id/files
func (s *Server) handleV1Files(c *gin.Context) {
	st, err := s.store.Get(sessionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	files, err := s.svc.Files(st)
	if err != nil {
		s.writeError(c, err)
		return
	}

	warnings := []string{}
	if len(files) == 0 {
		warnings = append(warnings, dashboard.WarnNoFiles)
	}
	c.JSON(http.StatusOK, gin.H{
		"data": files,
		"meta": gin.H{
			"count":    len(files),
			"warnings": warnings,
		},
	})
}

// handleV1Features lists the feature ids of the selected time slice
// GET /api/v1/sessions/:id/features
func (s *Server) handleV1Features(c *gin.Context) {
	st, err := s.store.Get(sessionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	ids, err := s.svc.Features(st)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": ids,
		"meta": gin.H{
			"count":    len(ids),
			"selected": st.Selection.IDs(),
		},
	})
}

// handleV1View recomputes the table, chart series and warnings
// GET /api/v1/sessions/:id/view
func (s *Server) handleV1View(c *gin.Context) {
	st, err := s.store.Get(sessionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respondView(c, st)
}

// handleV1TableCSV downloads the current table
// GET /api/v1/sessions/:id/table.csv
func (s *Server) handleV1TableCSV(c *gin.Context) {
	st, err := s.store.Get(sessionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), renderTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := s.svc.Table(ctx, st, &buf); err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="table.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// handleV1Chart renders the line chart
// GET /api/v1/sessions/:id/chart?format=png|svg
func (s *Server) handleV1Chart(c *gin.Context) {
	format, err := chart.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := s.store.Get(sessionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), renderTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := s.svc.Chart(ctx, st, &buf, format); err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// handleV1Map returns the styled flowpath layer and its view box
// GET /api/v1/sessions/:id/map
func (s *Server) handleV1Map(c *gin.Context) {
	st, err := s.store.Get(sessionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), renderTimeout)
	defer cancel()

	m, err := s.svc.Map(ctx, st)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": m,
		"meta": gin.H{
			"count":    len(m.Layer.Features),
			"selected": st.Selection.IDs(),
		},
	})
}

func (s *Server) respondView(c *gin.Context, st session.State) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), renderTimeout)
	defer cancel()

	view, err := s.svc.Render(ctx, st)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": view,
		"meta": gin.H{
			"session":  st.ID,
			"phase":    view.Phase,
			"warnings": view.Warnings,
		},
	})
}

// writeError maps domain errors to status codes. Anything unrecognised is
// malformed input and aborts the interaction with a 500.
func (s *Server) writeError(c *gin.Context, err error) {
	var warning *dashboard.WarningError
	switch {
	case errors.As(err, &warning):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"warning": warning.Warning})
	case errors.Is(err, dashboard.ErrMapHidden):
		c.JSON(http.StatusNotFound, gin.H{"warning": err.Error()})
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, catalog.ErrMissingSlice),
		errors.Is(err, hydrofabric.ErrLayerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrInvalidUpdate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, frame.ErrUnknownColumn):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		if s.logger != nil {
			s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
