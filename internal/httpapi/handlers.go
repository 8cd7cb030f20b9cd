package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
	"github.com/kanzleiwerk/aktenregister/internal/caseref"
	"github.com/kanzleiwerk/aktenregister/internal/casefile"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

func (s *Server) createCase(c *gin.Context) {
	var in casefile.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.writeError(c, apperr.Validation(apperr.CodeMalformedField, "",
			"malformed request body: %v", err))
		return
	}

	created, err := s.cases.Create(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// updateRequest wraps the allow-listed changes with the caller's last read
// version. A nil expected_version skips the optimistic check.
type updateRequest struct {
	casefile.UpdateInput
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

func (s *Server) updateCase(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Validation(apperr.CodeMalformedField, "",
			"malformed request body: %v", err))
		return
	}

	updated, err := s.cases.Update(c.Request.Context(), c.Param("id"), req.UpdateInput, req.ExpectedVersion)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) getCase(c *gin.Context) {
	found, err := s.cases.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) listCases(c *gin.Context) {
	filter := casefile.Filter{
		Family: caseref.Family(c.Query("family")),
		State:  casefile.State(c.Query("state")),
	}
	cases, err := s.cases.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

func (s *Server) getSettings(c *gin.Context) {
	values, err := s.settings.GetAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (s *Server) updateSettings(c *gin.Context) {
	var changes map[string]string
	if err := c.ShouldBindJSON(&changes); err != nil {
		s.writeError(c, apperr.Validation(apperr.CodeMalformedField, "",
			"malformed request body: %v", err))
		return
	}

	values, err := s.settings.Update(c.Request.Context(), changes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (s *Server) checkpoint(c *gin.Context) {
	res, err := s.store.Checkpoint(c.Request.Context(), store.CheckpointPassive)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": res.Flushed()})
}

func (s *Server) integrity(c *gin.Context) {
	ok, err := s.store.VerifyIntegrity(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"ok": ok})
}
