package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dhcgn/patent-reminders/model"
	"github.com/dhcgn/patent-reminders/scan"
	"github.com/dhcgn/patent-reminders/storage"
	"github.com/dhcgn/patent-reminders/store"
)

// CompleteRequest is the body of POST /api/reminders/complete and
// /api/reminders/uncomplete. Subject and deadline are informational.
type CompleteRequest struct {
	ApplicationNo string `json:"application_no"`
	FilePath      string `json:"file_path"`
	Subject       string `json:"subject"`
	Deadline      string `json:"deadline"`
}

// CompletionResult echoes the toggled key.
type CompletionResult struct {
	ApplicationNo string `json:"application_no"`
	FilePath      string `json:"file_path"`
	Completed     bool   `json:"completed"`
}

// StatsResponse counts current reminders by urgency.
type StatsResponse struct {
	Total        int         `json:"total"`
	Overdue      int         `json:"overdue"`
	Urgent       int         `json:"urgent"`
	Normal       int         `json:"normal"`
	Certificates int         `json:"certificates"`
	Invoices     int         `json:"invoices"`
	Notices      int         `json:"notices"`
	Completion   store.Stats `json:"completion"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) runScan(c echo.Context, includeCompleted bool) (scan.Result, error) {
	res, err := s.scanner.Scan(c.Request().Context(), scan.Options{IncludeCompleted: includeCompleted})
	if err != nil {
		s.logger.Error("scan failed", "err", err)
		return scan.Result{}, echo.NewHTTPError(http.StatusInternalServerError, "scan failed")
	}
	return res, nil
}

func (s *Server) handleReminders(c echo.Context) error {
	include := false
	if v := c.QueryParam("include_completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "include_completed must be true or false")
		}
		include = b
	}
	res, err := s.runScan(c, include)
	if err != nil {
		return err
	}
	return list(c, res.Reminders)
}

func (s *Server) handleCertificates(c echo.Context) error {
	res, err := s.runScan(c, false)
	if err != nil {
		return err
	}
	return list(c, res.Certificates)
}

func (s *Server) handleInvoices(c echo.Context) error {
	res, err := s.runScan(c, false)
	if err != nil {
		return err
	}
	return list(c, res.Invoices)
}

func (s *Server) handleNotices(c echo.Context) error {
	res, err := s.runScan(c, false)
	if err != nil {
		return err
	}
	return list(c, res.Notices)
}

func (s *Server) handleStats(c echo.Context) error {
	res, err := s.runScan(c, false)
	if err != nil {
		return err
	}
	out := StatsResponse{
		Total:        len(res.Reminders),
		Certificates: len(res.Certificates),
		Invoices:     len(res.Invoices),
		Notices:      len(res.Notices),
	}
	for _, r := range res.Reminders {
		switch r.Urgency {
		case model.UrgencyOverdue:
			out.Overdue++
		case model.UrgencyUrgent:
			out.Urgent++
		default:
			out.Normal++
		}
	}
	out.Completion, err = s.status.Stats(c.Request().Context())
	if err != nil {
		s.logger.Warn("completion stats unavailable", "err", err)
	}
	return ok(c, out)
}

func (s *Server) handleCompletionStats(c echo.Context) error {
	st, err := s.status.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, st)
}

func (s *Server) bindCompletion(c echo.Context) (CompleteRequest, error) {
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid completion request", "err", err)
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.ApplicationNo = strings.TrimSpace(req.ApplicationNo)
	req.FilePath = strings.TrimSpace(req.FilePath)
	if req.ApplicationNo == "" || req.FilePath == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "application_no and file_path are required")
	}
	return req, nil
}

func (s *Server) handleComplete(c echo.Context) error {
	req, err := s.bindCompletion(c)
	if err != nil {
		return err
	}
	if _, err := s.status.MarkCompleted(c.Request().Context(), req.ApplicationNo, req.FilePath, req.Subject, req.Deadline); err != nil {
		return err
	}
	s.logger.Info("reminder completed", "application_no", req.ApplicationNo, "path", req.FilePath)
	return ok(c, CompletionResult{ApplicationNo: req.ApplicationNo, FilePath: req.FilePath, Completed: true})
}

func (s *Server) handleUncomplete(c echo.Context) error {
	req, err := s.bindCompletion(c)
	if err != nil {
		return err
	}
	found, err := s.status.MarkUncompleted(c.Request().Context(), req.ApplicationNo, req.FilePath)
	if err != nil {
		return err
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "no completion record")
	}
	s.logger.Info("reminder reopened", "application_no", req.ApplicationNo, "path", req.FilePath)
	return ok(c, CompletionResult{ApplicationNo: req.ApplicationNo, FilePath: req.FilePath, Completed: false})
}

func (s *Server) handleDownload(c echo.Context) error {
	ref, err := url.PathUnescape(c.Param("ref"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reference")
	}
	path, err := s.files.Resolve(ref)
	switch {
	case errors.Is(err, storage.ErrOutsideRoot):
		s.logger.Warn("rejected download reference", "ref", ref)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reference")
	case errors.Is(err, storage.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	case err != nil:
		return err
	}
	return c.Attachment(path, displayName(ref))
}

// displayName drops the id prefix of a stored file name.
func displayName(ref string) string {
	if _, name, found := strings.Cut(ref, "_"); found && name != "" {
		return name
	}
	return ref
}
