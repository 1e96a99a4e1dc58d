package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldstack/orchestrator/pkg/model"
)

func (s *Server) putAgentHandler(c *gin.Context) {
	var req PutAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errBadRequest(err))
		return
	}

	tools := make([]model.ToolName, len(req.AllowedTools))
	for i, t := range req.AllowedTools {
		tools[i] = model.ToolName(t)
	}
	schema := make(map[string]model.FieldType, len(req.OutputSchema))
	for k, v := range req.OutputSchema {
		schema[k] = model.FieldType(v)
	}

	def := &model.AgentDefinition{
		TenantID:         tenantID(c),
		AgentID:          req.AgentID,
		Class:            model.Class(req.Class),
		SystemPrompt:     req.SystemPrompt,
		AllowedTools:     tools,
		OutputSchema:     schema,
		RequiredKeys:     req.RequiredKeys,
		DependencyParent: req.DependencyParent,
		Interrogative:    model.Interrogative(req.Interrogative),
	}

	version, err := s.configStore.PutAgent(c.Request.Context(), def)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version})
}

func (s *Server) getAgentHandler(c *gin.Context) {
	agent, err := s.configStore.Agents().Get(tenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agentToResponse(agent))
}

func (s *Server) listAgentsHandler(c *gin.Context) {
	agents := s.configStore.AgentsForTenant(tenantID(c))
	resp := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, agentToResponse(a))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) putPlaybookHandler(c *gin.Context) {
	var req PutPlaybookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errBadRequest(err))
		return
	}

	pb := &model.Playbook{
		TenantID:   tenantID(c),
		PlaybookID: req.PlaybookID,
		DomainID:   req.DomainID,
		Class:      model.Class(req.Class),
		AgentIDs:   req.AgentIDs,
	}

	version, err := s.configStore.PutPlaybook(c.Request.Context(), pb)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version})
}

func (s *Server) getPlaybookHandler(c *gin.Context) {
	pb, err := s.configStore.Playbooks().Get(tenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, playbookToResponse(pb))
}

func (s *Server) putGraphHandler(c *gin.Context) {
	var req PutGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errBadRequest(err))
		return
	}

	edges := make([]model.Edge, len(req.Edges))
	for i, e := range req.Edges {
		edges[i] = model.Edge{From: e.From, To: e.To}
	}

	g := &model.DependencyGraph{
		TenantID:   tenantID(c),
		GraphID:    req.GraphID,
		PlaybookID: req.PlaybookID,
		Edges:      edges,
	}

	if err := s.configStore.PutDependencyGraph(c.Request.Context(), g); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getGraphHandler(c *gin.Context) {
	g, err := s.configStore.Graphs().Get(tenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, graphToResponse(g))
}

func (s *Server) getTemplateHandler(c *gin.Context) {
	t, err := s.configStore.Templates().Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, templateToResponse(t))
}

func (s *Server) instantiateTemplateHandler(c *gin.Context) {
	result, err := s.configStore.InstantiateTemplate(c.Request.Context(), c.Param("id"), tenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
