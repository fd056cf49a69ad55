package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"indicadores/internal/dashboard"
	"indicadores/internal/log"
	"indicadores/internal/render"
	"indicadores/internal/services"
	"indicadores/internal/storage"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePNG  = "image/png"
	pageTimeout     = 20 * time.Second
)

// writeError logs and sends the JSON error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		ValidationFailed(verr).Write(w)
		return
	}
	JSONError(status, publicMessage(status, err)).Write(w)
}

func (s *Server) writeHTMLError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Page failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	HTMLError(status, publicMessage(status, err)).Write(w)
}

// loadPage parses the filter and builds the page named by the route.
func (s *Server) loadPage(r *http.Request) (dashboard.Page, error) {
	filter, err := s.parser.ParseFilter(r.URL.Query())
	if err != nil {
		return dashboard.Page{}, err
	}
	ctx, cancel := context.WithTimeout(r.Context(), pageTimeout)
	defer cancel()
	return s.deps.Dashboard.Page(ctx, mux.Vars(r)["topic"], filter)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"focus":  s.deps.Dashboard.Focus(),
		"topics": s.deps.Dashboard.Topics(),
	}).Write(w)
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(page).Write(w)
}

type sectionResponse struct {
	dashboard.Section
	Grid dashboard.Grid `json:"grid"`
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["section"]
	sec, ok := page.Section(id)
	if !ok {
		s.writeError(w, r, fmt.Errorf("section %q: %w", id, dashboard.ErrUnknownSection))
		return
	}
	NewResponse().JSON(sectionResponse{Section: sec, Grid: sec.Grid()}).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := render.WriteXLSX(&buf, page); err != nil {
		s.writeError(w, r, err)
		return
	}
	filename := page.Topic + ".xlsx"
	if page.PeriodLabel != "" {
		filename = page.Topic + "_" + page.PeriodLabel + ".xlsx"
	}
	NewResponse().Attachment(sanitizeFilename(filename), contentTypeXLSX, buf.Bytes()).Write(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["section"]
	sec, ok := page.Section(id)
	if !ok {
		s.writeError(w, r, fmt.Errorf("section %q: %w", id, dashboard.ErrUnknownSection))
		return
	}
	var buf bytes.Buffer
	if err := render.WritePNG(&buf, sec, 0, 0); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().
		Header("Cache-Control", "private, max-age=300").
		Inline(contentTypePNG, buf.Bytes()).
		Write(w)
}

func (s *Server) handlePivot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := s.parser.ParseFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := s.parser.ParsePivotRequest(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), pageTimeout)
	defer cancel()
	res, err := s.deps.Dashboard.Pivot(ctx, mux.Vars(r)["dataset"], filter, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(res).Write(w)
}

type refreshAccepted struct {
	JobID    string   `json:"job_id"`
	Datasets []string `json:"datasets"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresh == nil {
		s.writeError(w, r, services.ErrRefreshUnavailable)
		return
	}
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		s.writeError(w, r, fieldError("body", "must be JSON or form encoded"))
		return
	}
	reason := body.Get("reason")
	if reason == "" {
		reason = "manual"
	}

	msg, err := s.deps.Refresh.RequestRefresh(r.Context(), reason, body.GetList(paramDatasets))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RefreshJobsPublished.Inc()
	}
	datasets := msg.Datasets
	if datasets == nil {
		datasets = []string{}
	}
	NewResponse().
		Status(http.StatusAccepted).
		NoStore().
		JSON(refreshAccepted{JobID: msg.JobID, Datasets: datasets}).
		Write(w)
}

func (s *Server) handleRefreshRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.writeError(w, r, fieldError("limit", "must be between 1 and 500"))
			return
		}
		limit = n
	}
	runs := []storage.RefreshRun{}
	if s.deps.Refresh != nil {
		rs, err := s.deps.Refresh.RecentRuns(r.Context(), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if rs != nil {
			runs = rs
		}
	}
	NewResponse().NoStore().JSON(map[string]any{"runs": runs}).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady runs every readiness check and reports each failure.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, c := range s.deps.Ready {
		if err := c.Check(ctx); err != nil {
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "checks", failed)
		NewResponse().Status(http.StatusServiceUnavailable).NoStore().
			JSON(map[string]any{"status": "unavailable", "checks": failed}).Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func sanitizeFilename(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch r {
		case '/', '\\', '"', ':':
			out[i] = '-'
		}
	}
	return string(out)
}

// withQuery appends the raw filter query of r to path.
func withQuery(path string, r *http.Request) string {
	if r.URL.RawQuery == "" {
		return path
	}
	return path + "?" + r.URL.RawQuery
}

func topicPath(slug string) string {
	return "/topics/" + url.PathEscape(slug)
}
