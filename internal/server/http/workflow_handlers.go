package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"axon/internal/workflow"
)

type saveWorkflowRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Nodes       []workflow.Node `json:"nodes"`
	Edges       []workflow.Edge `json:"edges"`
}

func (s *Server) handleListWorkflows(c *gin.Context) {
	saved, err := s.store.List()
	if err != nil {
		abortError(c, http.StatusInternalServerError, "list workflows: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": saved})
}

func (s *Server) handleSaveWorkflow(c *gin.Context) {
	var req saveWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Name == "" {
		abortError(c, http.StatusBadRequest, "workflow name is required")
		return
	}

	saved, err := s.store.Save(req.Name, req.Nodes, req.Edges, req.Description, "")
	if err != nil {
		abortError(c, http.StatusInternalServerError, "save workflow: %v", err)
		return
	}
	if s.OnWorkflowSaved != nil {
		s.OnWorkflowSaved(saved)
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleGetWorkflow(c *gin.Context) {
	saved, err := s.store.Get(c.Param("id"))
	if err != nil {
		abortError(c, http.StatusNotFound, "workflow not found: %s", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleUpdateWorkflow(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.Get(id); err != nil {
		abortError(c, http.StatusNotFound, "workflow not found: %s", id)
		return
	}

	var req saveWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	saved, err := s.store.Save(req.Name, req.Nodes, req.Edges, req.Description, id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "update workflow: %v", err)
		return
	}
	if s.OnWorkflowSaved != nil {
		s.OnWorkflowSaved(saved)
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleDeleteWorkflow(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.Delete(id); err != nil {
		abortError(c, http.StatusNotFound, "workflow not found: %s", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDuplicateWorkflow(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	_ = c.ShouldBindJSON(&req)

	saved, err := s.store.Duplicate(c.Param("id"), req.Name)
	if err != nil {
		abortError(c, http.StatusNotFound, "workflow not found: %s", c.Param("id"))
		return
	}
	if s.OnWorkflowSaved != nil {
		s.OnWorkflowSaved(saved)
	}
	c.JSON(http.StatusCreated, saved)
}
