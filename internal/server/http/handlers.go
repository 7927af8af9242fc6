package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"axon/internal/registry"
	"axon/internal/workflow"
	"axon/internal/workflowtool"
)

func (s *Server) handleListNodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": s.registry.ListNodes()})
}

func (s *Server) handleListTools(c *gin.Context) {
	tools := s.registry.ListTools()
	schemas := make([]registry.ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, t.Schema())
	}
	c.JSON(http.StatusOK, gin.H{"tools": schemas})
}

func (s *Server) handleExecuteTool(c *gin.Context) {
	name := c.Param("name")
	tool, ok := s.registry.Tool(name)
	if !ok {
		abortError(c, http.StatusNotFound, "tool not found: %s", name)
		return
	}

	params := map[string]any{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
	}

	if err := s.registry.ValidateParams(name, params); err != nil {
		abortError(c, http.StatusBadRequest, "%v", err)
		return
	}

	result, err := tool.Execute(c.Request.Context(), params)
	if err != nil {
		s.logger.Error("Tool %s failed: %v", name, err)
		abortError(c, http.StatusInternalServerError, "%v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (s *Server) handleListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": s.templates.List()})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	tpl, ok := s.templates.Get(c.Param("id"))
	if !ok {
		abortError(c, http.StatusNotFound, "template not found: %s", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, tpl)
}

type runRequest struct {
	TemplateID string `json:"templateId"`
	WorkflowID string `json:"workflowId"`
	Params     struct {
		Task string `json:"task"`
	} `json:"params"`
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	doc, err := s.resolveRunDocument(req)
	if err != nil {
		abortError(c, http.StatusNotFound, "%v", err)
		return
	}

	if req.Params.Task != "" {
		workflowtool.InjectTask(doc, req.Params.Task)
	}

	result := s.engine.Execute(c.Request.Context(), doc, nil)
	if !result.Success {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": result.Error, "logs": result.Logs})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  workflowtool.ExtractResult(doc, result.Outputs),
		"logs":    result.Logs,
	})
}

func (s *Server) resolveRunDocument(req runRequest) (*workflow.Document, error) {
	switch {
	case req.TemplateID != "":
		tpl, ok := s.templates.Get(req.TemplateID)
		if !ok {
			return nil, fmt.Errorf("template not found: %s", req.TemplateID)
		}
		return tpl.Document(), nil
	case req.WorkflowID != "":
		saved, err := s.store.Get(req.WorkflowID)
		if err != nil {
			return nil, fmt.Errorf("workflow not found: %s", req.WorkflowID)
		}
		return saved.Document(), nil
	default:
		return nil, fmt.Errorf("request requires templateId or workflowId")
	}
}
