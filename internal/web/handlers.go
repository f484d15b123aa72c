package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"versescope/internal/analysis"
	"versescope/internal/logging"
	"versescope/internal/pipeline"
	"versescope/internal/services"
)

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"errorKind,omitempty"`
}

type analyzeRequest struct {
	Query  string `json:"query" form:"query"`
	Detail string `json:"detail" form:"detail"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Snapshot())
}

func (s *Server) handleIndex(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return renderPage(c.Response(), s.page, s.orch.Snapshot(), s.opts.DefaultDetail)
}

// handleAnalyzeForm starts the pipeline in the background and redirects back
// to the page, which shows the busy state and reloads on the websocket's next
// snapshot. The run outlives the form request.
func (s *Server) handleAnalyzeForm(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	level, err := s.detailLevel(req.Detail)
	if err != nil {
		level = s.opts.DefaultDetail
	}
	if gen := s.orch.Submit(c.Request().Context(), req.Query, level); gen != 0 {
		s.logger.Debug("form analysis submitted", logging.Uint64(logging.FieldGeneration, gen))
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleAPIAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", ErrorKind: services.KindValidation})
	}
	level, err := s.detailLevel(req.Detail)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), ErrorKind: services.KindValidation})
	}
	snap, err := s.orch.Run(c.Request().Context(), req.Query, level)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, snap)
	case errors.Is(err, pipeline.ErrEmptyQuery):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: services.UserMessage(err), ErrorKind: services.KindValidation})
	case errors.Is(err, pipeline.ErrSuperseded):
		return c.JSON(http.StatusConflict, errorResponse{Error: "superseded by a newer request", ErrorKind: services.KindCanceled})
	case errors.Is(err, pipeline.ErrClosed):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "server is shutting down"})
	default:
		return c.JSON(statusForKind(snap.ErrorKind), snap)
	}
}

// detailLevel parses a requested level; blank selects the server default.
func (s *Server) detailLevel(value string) (analysis.DetailLevel, error) {
	if strings.TrimSpace(value) == "" {
		return s.opts.DefaultDetail, nil
	}
	return analysis.ParseDetailLevel(value)
}

func statusForKind(kind string) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConfiguration:
		return http.StatusServiceUnavailable
	case services.KindUpstream, services.KindParse:
		return http.StatusBadGateway
	case services.KindTransient:
		return http.StatusGatewayTimeout
	case services.KindCanceled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
