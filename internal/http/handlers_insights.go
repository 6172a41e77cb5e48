package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"tradejoy/internal/core"
	"tradejoy/internal/export"
	"tradejoy/internal/log"
)

const (
	defaultAnalyticsDays = 7
	maxAnalyticsDays     = 365
)

type analytics struct {
	DailyData         []core.DailyTotals    `json:"daily_data"`
	CategoryBreakdown []core.CategoryAmount `json:"category_breakdown"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Field("stats", s.ledger.Totals()).
		Write(w)
}

func (s *Server) handleCoachTip(w http.ResponseWriter, r *http.Request) {
	totals := s.ledger.Totals()
	NewJSONResponse().
		Field("tip", s.coach.ForProfile(s.ledger.Profile()).Tip(totals)).
		Field("stats", totals).
		Write(w)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := IntParam(r.URL.Query(), "days", defaultAnalyticsDays, 1, maxAnalyticsDays)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	a := analytics{
		DailyData:         s.ledger.Daily(days),
		CategoryBreakdown: s.ledger.SalesByCategory(),
	}
	if a.DailyData == nil {
		a.DailyData = []core.DailyTotals{}
	}
	if a.CategoryBreakdown == nil {
		a.CategoryBreakdown = []core.CategoryAmount{}
	}
	NewJSONResponse().
		Field("analytics", a).
		Write(w)
}

// handleExport renders the whole ledger as an XLSX download. The workbook is
// built in memory first so a failure can still be reported as JSON.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	report := export.Report{
		Transactions: s.ledger.List(0),
		Totals:       s.ledger.Totals(),
		Categories:   s.ledger.SalesByCategory(),
		GeneratedAt:  now,
	}

	logger := s.requestLogger(r)
	var buf bytes.Buffer
	if err := export.Write(&buf, report); err != nil {
		logger.ErrorContext(r.Context(), "Failed to build export", log.FieldError, err, log.FieldOperation, log.OpExport)
		InternalServerError("Failed to export transactions").Write(w)
		return
	}

	logger.InfoContext(r.Context(), "Ledger exported",
		log.FieldOperation, log.OpExport, "count", len(report.Transactions), "bytes", buf.Len())
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(now)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
