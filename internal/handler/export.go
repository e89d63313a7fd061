package handler

import (
	"fmt"
	"net/http"
	"time"
)

// ExportTrips handles GET /trips/export?format=csv|pdf.
//
// CSV is served as text/csv. The "pdf" format serves the self-contained HTML
// report; turning it into an actual PDF is the client's print capability, the
// server only guarantees a printable document. Both carry a Content-Disposition
// with a date-stamped filename so browsers download rather than render.
func (s *Server) ExportTrips(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	rows, meta, err := s.exports.BuildRows(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	stamp := time.Now().Format("2006-01-02")

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="trips_export_%s.csv"`, stamp))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.exports.CSV(rows))

	case "pdf":
		doc, err := s.exports.HTML(rows, meta)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="trips_report_%s.html"`, stamp))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)

	default:
		badRequest(w, "format must be csv or pdf")
	}
}
