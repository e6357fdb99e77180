package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/session"
)

const sessionCookie = "session_id"

// sessionID is the :id path parameter, or the session cookie on routes
// without one.
func sessionID(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	id, _ := c.Cookie(sessionCookie)
	return id
}

// handleV1CreateSession starts a session from the configured defaults
// POST /api/v1/sessions
func (s *Server) handleV1CreateSession(c *gin.Context) {
	st := s.store.Create()
	s.trackSessions()

	c.SetCookie(sessionCookie, st.ID, int(s.cfg.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusCreated, gin.H{
		"data": st,
		"meta": gin.H{"phase": st.Phase()},
	})
}

// handleV1GetSession returns the controls of a session
// GET /api/v1/sessions/:id
func (s *Server) handleV1GetSession(c *gin.Context) {
	st, err := s.store.Get(sessionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": st,
		"meta": gin.H{"phase": st.Phase()},
	})
}

// handleV1UpdateSession applies a partial change of controls
// PATCH /api/v1/sessions/:id
func (s *Server) handleV1UpdateSession(c *gin.Context) {
	var u session.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	st, err := s.store.Update(sessionID(c), func(cur session.State) (session.State, error) {
		return cur.Apply(u)
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": st,
		"meta": gin.H{"phase": st.Phase()},
	})
}

// handleV1DeleteSession ends a session
// DELETE /api/v1/sessions/:id
func (s *Server) handleV1DeleteSession(c *gin.Context) {
	id := sessionID(c)
	s.store.Delete(id)
	s.trackSessions()
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie == id {
		c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	}
	c.Status(http.StatusNoContent)
}

type toggleRequest struct {
	FeatureID *int64 `json:"feature_id" binding:"required"`
}

// handleV1ToggleSelection flips one feature id in the selection
// POST /api/v1/sessions/:id/selection/toggle
func (s *Server) handleV1ToggleSelection(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feature_id is required"})
		return
	}

	st, err := s.store.Update(sessionID(c), func(cur session.State) (session.State, error) {
		return s.svc.Toggle(cur, *req.FeatureID), nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respondView(c, st)
}

type clickRequest struct {
	Tooltip string `json:"tooltip"`
}

// handleV1MapClick toggles the feature named by a clicked flowpath tooltip.
// Tooltips that name no feature leave the session alone.
// POST /api/v1/sessions/:id/map/click
func (s *Server) handleV1MapClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	ignored := false
	st, err := s.store.Update(sessionID(c), func(cur session.State) (session.State, error) {
		next, ok := s.svc.Click(cur, req.Tooltip)
		ignored = !ok
		return next, nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	if ignored {
		c.JSON(http.StatusOK, gin.H{
			"ignored": true,
			"data":    st,
			"meta":    gin.H{"phase": st.Phase()},
		})
		return
	}
	s.respondView(c, st)
}

func (s *Server) trackSessions() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.store.Len()))
	}
}
