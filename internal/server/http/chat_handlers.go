package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	SessionID       string `json:"sessionId"`
	Message         string `json:"message"`
	ExecuteCommands *bool  `json:"executeCommands"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Message == "" {
		abortError(c, http.StatusBadRequest, "message is required")
		return
	}

	executeCommands := true
	if req.ExecuteCommands != nil {
		executeCommands = *req.ExecuteCommands
	}

	resp, err := s.dispatcher.Chat(c.Request.Context(), req.SessionID, req.Message, executeCommands)
	if err != nil {
		s.logger.Error("Chat failed: %v", err)
		abortError(c, http.StatusInternalServerError, "%v", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.dispatcher.Sessions().List()})
}

func (s *Server) handleNewSession(c *gin.Context) {
	session := s.dispatcher.Sessions().Create()
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, ok := s.dispatcher.Sessions().Get(c.Param("id"))
	if !ok {
		abortError(c, http.StatusNotFound, "session not found: %s", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.dispatcher.Sessions().Delete(c.Param("id")) {
		abortError(c, http.StatusNotFound, "session not found: %s", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleSessionWorkflow(c *gin.Context) {
	if _, ok := s.dispatcher.Sessions().Get(c.Param("id")); !ok {
		abortError(c, http.StatusNotFound, "session not found: %s", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, s.dispatcher.Commands().Workflow(c.Param("id")))
}
