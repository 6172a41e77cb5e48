package http

import (
	"errors"
	"net/http"

	"tradejoy/internal/core"
	"tradejoy/internal/log"
)

// profileRequest is the body of POST /api/profile. Omitted fields keep their
// current value.
type profileRequest struct {
	BusinessName *string     `json:"business_name"`
	BusinessType *string     `json:"business_type"`
	DailyTarget  *core.Money `json:"daily_target"`
	WeeklyTarget *core.Money `json:"weekly_target"`
}

func (req profileRequest) apply(p core.Profile) core.Profile {
	if req.BusinessName != nil {
		p.BusinessName = sanitizeInput(*req.BusinessName)
	}
	if req.BusinessType != nil {
		p.BusinessType = sanitizeInput(*req.BusinessType)
	}
	if req.DailyTarget != nil {
		p.DailyTarget = *req.DailyTarget
	}
	if req.WeeklyTarget != nil {
		p.WeeklyTarget = *req.WeeklyTarget
	}
	return p
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Field("profile", s.ledger.Profile()).
		Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			UnprocessableEntityError("Invalid profile: " + core.ErrInvalidTarget.Error()).Write(w)
			return
		}
		bodyError(err).Write(w)
		return
	}

	p := req.apply(s.ledger.Profile())
	if err := p.Validate(); err != nil {
		UnprocessableEntityError("Invalid profile: " + err.Error()).Write(w)
		return
	}

	updated, err := s.ledger.UpdateProfile(r.Context(), p)
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Failed to update profile",
			log.FieldError, err, log.FieldOperation, log.OpUpdate)
		InternalServerError("Failed to update profile").Write(w)
		return
	}

	NewJSONResponse().
		Field("profile", updated).
		Message("Profile updated successfully").
		Write(w)
}
