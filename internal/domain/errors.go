package domain

import (
	"errors"
	"fmt"
)

// Code é o código estável de motivo devolvido ao chamador
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeStakeOutOfRange   Code = "STAKE_OUT_OF_RANGE"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeAccountInactive   Code = "ACCOUNT_INACTIVE"
	CodeUnknownUser       Code = "UNKNOWN_USER"
	CodeMatchNotBettable  Code = "MATCH_NOT_BETTABLE"
	CodeInvalidSide       Code = "INVALID_SIDE_SELECTION"
	CodeDuplicateBet      Code = "DUPLICATE_BET"
	CodeCannotCancel      Code = "CANNOT_CANCEL"
	CodeInconsistentState Code = "INCONSISTENT_STATE"
	CodeBetNotFound       Code = "BET_NOT_FOUND"
	CodeMatchNotFound     Code = "MATCH_NOT_FOUND"
	CodeMatchNotCompleted Code = "MATCH_NOT_COMPLETED"
	CodeInternal          Code = "INTERNAL"
)

// Error carrega um código de motivo e uma mensagem legível
// errors.Is compara apenas o código, então erros detalhados casam com os sentinelas
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Msg }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrValidation           = &Error{Code: CodeValidation, Msg: "invalid input"}
	ErrStakeOutOfRange      = &Error{Code: CodeStakeOutOfRange, Msg: "stake outside allowed range"}
	ErrInsufficientFunds    = &Error{Code: CodeInsufficientFunds, Msg: "insufficient funds"}
	ErrAccountInactive      = &Error{Code: CodeAccountInactive, Msg: "account inactive"}
	ErrUnknownUser          = &Error{Code: CodeUnknownUser, Msg: "unknown user"}
	ErrMatchNotBettable     = &Error{Code: CodeMatchNotBettable, Msg: "match not open for betting"}
	ErrInvalidSideSelection = &Error{Code: CodeInvalidSide, Msg: "side is not part of the match"}
	ErrDuplicateBet         = &Error{Code: CodeDuplicateBet, Msg: "user already has a bet on this match"}
	ErrCannotCancel         = &Error{Code: CodeCannotCancel, Msg: "bet cannot be cancelled"}
	ErrInconsistentState    = &Error{Code: CodeInconsistentState, Msg: "inconsistent state"}
	ErrBetNotFound          = &Error{Code: CodeBetNotFound, Msg: "bet not found"}
	ErrMatchNotFound        = &Error{Code: CodeMatchNotFound, Msg: "match not found"}
	ErrMatchNotCompleted    = &Error{Code: CodeMatchNotCompleted, Msg: "match has no recorded result"}
)

// Newf cria um erro detalhado com o código informado
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extrai o código de motivo; erros de infraestrutura viram INTERNAL
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsBusinessRefusal indica recusas esperadas (validação, carteira, aposta, cancelamento)
// Essas nunca devem ser logadas como erro
func IsBusinessRefusal(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeStakeOutOfRange,
		CodeInsufficientFunds, CodeAccountInactive, CodeUnknownUser,
		CodeMatchNotBettable, CodeInvalidSide, CodeDuplicateBet,
		CodeCannotCancel, CodeBetNotFound, CodeMatchNotFound, CodeMatchNotCompleted:
		return true
	}
	return false
}
