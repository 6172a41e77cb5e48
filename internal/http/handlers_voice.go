package http

import (
	"errors"
	"net/http"

	"tradejoy/internal/intent"
	"tradejoy/internal/log"
)

const maxUtteranceRunes = 500

type voiceCommandRequest struct {
	Command string `json:"command"`
}

type interpretRequest struct {
	Text string `json:"text"`
	// Mode is "trading" (default) or "ledger". Ledger mode only parses; it
	// never records.
	Mode string `json:"mode"`
}

// handleVoiceCommand interprets a spoken sale or expense and records it.
func (s *Server) handleVoiceCommand(w http.ResponseWriter, r *http.Request) {
	var req voiceCommandRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		bodyError(err).Write(w)
		return
	}
	command := truncateRunes(sanitizeInput(req.Command), maxUtteranceRunes)
	if command == "" {
		BadRequestError("No voice command provided").Write(w)
		return
	}

	logger := s.requestLogger(r)
	got, err := s.voice.Interpret(command)
	if err != nil {
		var pe *intent.ParseError
		if errors.As(err, &pe) {
			logger.DebugContext(r.Context(), "Voice command not understood",
				log.FieldOperation, log.OpParse, log.FieldError, pe.Reason)
			UnprocessableEntityError("Could not extract transaction from voice command").
				Field("reason", pe.Reason.Error()).
				Suggestions(pe.Suggestions).
				Write(w)
			return
		}
		logger.ErrorContext(r.Context(), "Failed to interpret voice command", log.FieldError, err)
		InternalServerError("Failed to process voice command").Write(w)
		return
	}

	rec, ok := got.(intent.RecordTransaction)
	if !ok {
		UnprocessableEntityError("Could not extract transaction from voice command").Write(w)
		return
	}

	tx, err := s.ledger.Record(r.Context(), rec.Entry())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to record voice transaction", log.FieldError, err, log.FieldOperation, log.OpCreate)
		InternalServerError("Failed to process voice command").Write(w)
		return
	}

	logger.TransactionRecorded(r.Context(), tx.ID, tx.Kind.String(), tx.Description, tx.Amount.Cents, string(tx.Category))
	NewJSONResponse().
		Status(http.StatusCreated).
		Field("transaction", tx).
		Message("Transaction extracted and added successfully").
		Write(w)
}

// handleInterpret returns the Intent for a free-text command without
// executing it.
func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	var req interpretRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		bodyError(err).Write(w)
		return
	}
	text := truncateRunes(sanitizeInput(req.Text), maxUtteranceRunes)
	if text == "" {
		BadRequestError("No command text provided").Write(w)
		return
	}

	var in *intent.Interpreter
	switch req.Mode {
	case "", "trading":
		in = s.commands
	case "ledger":
		in = s.voice
	default:
		BadRequestError("mode must be 'trading' or 'ledger'").Write(w)
		return
	}

	got, err := in.Interpret(text)
	if err != nil {
		var pe *intent.ParseError
		if errors.As(err, &pe) {
			UnprocessableEntityError("Could not interpret command").
				Field("reason", pe.Reason.Error()).
				Suggestions(pe.Suggestions).
				Write(w)
			return
		}
		InternalServerError("Failed to interpret command").Write(w)
		return
	}

	env := intent.Wrap(got)
	s.requestLogger(r).DebugContext(r.Context(), "Command interpreted",
		log.FieldIntent, string(env.Kind), log.FieldOperation, log.OpParse)
	NewJSONResponse().
		Field("mode", in.Mode().String()).
		Field("kind", env.Kind).
		Field("intent", env.Intent).
		Write(w)
}
