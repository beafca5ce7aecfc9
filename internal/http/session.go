package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type SessionResponse struct {
	UserID    string `json:"user_id,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

type LoginRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// SessionController switches the active identity. Authentication happens
// upstream; this only tells the engine whose favorites to show.
type SessionController struct {
	session SessionManager
}

func NewSessionController(session SessionManager) *SessionController {
	return &SessionController{session: session}
}

func (sc *SessionController) current() SessionResponse {
	userID, ok := sc.session.Current()
	return SessionResponse{UserID: userID, Anonymous: !ok}
}

// GetSession handles GET /api/session
func (sc *SessionController) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, sc.current())
}

// Login handles PUT /api/session
func (sc *SessionController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		respondBadRequest(c, "user_id is required")
		return
	}

	sc.session.Login(req.UserID)
	c.JSON(http.StatusOK, sc.current())
}

// Logout handles DELETE /api/session
func (sc *SessionController) Logout(c *gin.Context) {
	sc.session.Logout()
	c.JSON(http.StatusOK, sc.current())
}
