package api

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

type dashboardData struct {
	Queue        string
	AuthRequired bool
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := dashboardData{Queue: s.admin.Q.Name(), AuthRequired: s.authRequired}
	if err := dashboardTmpl.Execute(w, data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("render dashboard")
	}
}
