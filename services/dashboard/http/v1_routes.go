package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the session API under /api/v1/sessions, and the
// same routes under /api/v1/session for the session named by the cookie.
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())

	sessions := v1.Group("/sessions")
	sessions.POST("", s.handleV1CreateSession)
	s.registerV1SessionRoutes(sessions.Group("/:id"))

	s.registerV1SessionRoutes(v1.Group("/session"))
}

func (s *Server) registerV1SessionRoutes(g *gin.RouterGroup) {
	g.GET("", s.handleV1GetSession)
	g.PATCH("", s.handleV1UpdateSession)
	g.DELETE("", s.handleV1DeleteSession)

	// Selection changes re-render and return the new view.
	g.POST("/selection/toggle", s.handleV1ToggleSelection)
	g.POST("/map/click", s.handleV1MapClick)

	g.GET("/files", s.handleV1Files)
	g.GET("/features", s.handleV1Features)
	g.GET("/view", s.handleV1View)
	g.GET("/table.csv", s.handleV1TableCSV)
	g.GET("/chart", s.handleV1Chart)
	g.GET("/map", s.handleV1Map)
}
