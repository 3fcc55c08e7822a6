// Package httpx reúne a tradução de erros de domínio para HTTP e a leitura de corpos JSON
// usadas pelas APIs do core.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
)

type ErrorResponse struct {
	Code    domain.Code `json:"code"`
	Message string      `json:"message"`
}

// StatusOf traduz o código de motivo para o status HTTP
func StatusOf(code domain.Code) int {
	switch code {
	case domain.CodeValidation, domain.CodeStakeOutOfRange:
		return http.StatusBadRequest
	case domain.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.CodeAccountInactive:
		return http.StatusForbidden
	case domain.CodeUnknownUser, domain.CodeBetNotFound, domain.CodeMatchNotFound:
		return http.StatusNotFound
	case domain.CodeDuplicateBet, domain.CodeMatchNotBettable, domain.CodeInvalidSide,
		domain.CodeCannotCancel, domain.CodeMatchNotCompleted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON serializa a resposta em JSON e define o status HTTP
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError responde com {code, message}; falhas internas não vazam detalhes
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Code: domain.CodeValidation, Message: verrs.Error()})
		return
	}

	code := domain.CodeOf(err)
	status := StatusOf(code)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", string(code)), zap.Error(err))
		msg := "internal error"
		if code == domain.CodeInconsistentState {
			msg = err.Error()
		}
		WriteJSON(w, status, ErrorResponse{Code: code, Message: msg})
		return
	}
	WriteJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

// DecodeJSON lê o corpo e valida com as tags do DTO
func DecodeJSON(r *http.Request, v interface{ Validate() error }) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Newf(domain.CodeValidation, "bad json: %v", err)
	}
	return v.Validate()
}
