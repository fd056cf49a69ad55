package http

import (
	"bytes"
	"net/http"
	"net/url"

	"indicadores/internal/dashboard"
	"indicadores/internal/log"
)

type sectionView struct {
	dashboard.Section
	Grid     dashboard.Grid
	ChartURL string
}

type topicView struct {
	Focus     string
	Topics    []dashboard.TopicInfo
	Current   string
	Page      dashboard.Page
	Sections  []sectionView
	ExportURL string
	Filter    url.Values
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		HTMLError(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		HTMLError(http.StatusInternalServerError, "rendering failed").Write(w)
		return
	}
	NewResponse().BodyHTML(buf.String()).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", topicView{
		Focus:  s.deps.Dashboard.Focus(),
		Topics: s.deps.Dashboard.Topics(),
	})
}

func (s *Server) handleTopicPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadPage(r)
	if err != nil {
		s.writeHTMLError(w, r, err)
		return
	}

	view := topicView{
		Focus:     s.deps.Dashboard.Focus(),
		Topics:    s.deps.Dashboard.Topics(),
		Current:   page.Topic,
		Page:      page,
		ExportURL: withQuery("/api"+topicPath(page.Topic)+"/export.xlsx", r),
		Filter:    r.URL.Query(),
	}
	for _, sec := range page.Sections {
		sv := sectionView{Section: sec, Grid: sec.Grid()}
		if sec.Chart != dashboard.ChartNone {
			sv.ChartURL = withQuery("/api"+topicPath(page.Topic)+"/sections/"+url.PathEscape(sec.ID)+"/chart.png", r)
		}
		view.Sections = append(view.Sections, sv)
	}
	s.render(w, r, "topic.html", view)
}
