package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldstack/orchestrator/pkg/model"
)

func (s *Server) submitIngestHandler(c *gin.Context) {
	var req SubmitIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errBadRequest(err))
		return
	}

	accepted, err := s.engine.SubmitIngest(c.Request.Context(), tenantID(c), userID(c), req.DomainID, req.Text, req.Attachments)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{JobID: accepted.JobID, AcceptedAt: accepted.AcceptedAt})
}

func (s *Server) submitQueryHandler(c *gin.Context) {
	var req SubmitQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errBadRequest(err))
		return
	}

	accepted, err := s.engine.SubmitQuery(c.Request.Context(), tenantID(c), userID(c), req.DomainID, req.Question, req.Filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{JobID: accepted.JobID, AcceptedAt: accepted.AcceptedAt})
}

func (s *Server) getJobHandler(c *gin.Context) {
	job, err := s.engine.GetJob(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var artifact *model.ResultArtifact
	if job.State.IsTerminal() && s.artifacts != nil {
		if a, err := s.artifacts.Get(c.Request.Context(), job.JobID); err == nil {
			artifact = a
		}
	}

	c.JSON(http.StatusOK, jobToResponse(job, artifact))
}

func (s *Server) cancelJobHandler(c *gin.Context) {
	if err := s.engine.Cancel(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func errBadRequest(err error) error {
	return badRequestError(err.Error())
}
