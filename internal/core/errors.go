package core

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidQuery
	KindKeyInvalid
	KindQuotaExceeded
	KindCountryNotFound
	KindCityNotFound
	KindUpstream
)

// String 用于日志 outcome 与指标标签
func (k Kind) String() string {
	switch k {
	case KindInvalidQuery:
		return "invalid_query"
	case KindKeyInvalid:
		return "key_invalid"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindCountryNotFound:
		return "country_not_found"
	case KindCityNotFound:
		return "city_not_found"
	case KindUpstream:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// 面向调用方的默认提示
const (
	MsgInvalidQuery    = "Invalid query"
	MsgMissingQuery    = "Missing city and/or country name"
	MsgKeyInvalid      = "The API key is not valid!"
	MsgMissingKey      = "Missing API key"
	MsgQuotaExceeded   = "The API key has reached its limit"
	MsgCountryNotFound = "Country name is not found"
	MsgCityNotFound    = "City name is not found"
	MsgUpstream        = "Weather service is unavailable"
	MsgInternal        = "Internal error"
)

// Error 查询流程的错误，Kind 取值封闭
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类别即匹配，使 errors.Is(err, ErrQuotaExceeded) 可用
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrInvalidQuery    = &Error{Kind: KindInvalidQuery, Message: MsgInvalidQuery}
	ErrKeyInvalid      = &Error{Kind: KindKeyInvalid, Message: MsgKeyInvalid}
	ErrQuotaExceeded   = &Error{Kind: KindQuotaExceeded, Message: MsgQuotaExceeded}
	ErrCountryNotFound = &Error{Kind: KindCountryNotFound, Message: MsgCountryNotFound}
	ErrCityNotFound    = &Error{Kind: KindCityNotFound, Message: MsgCityNotFound}
	ErrUpstream        = &Error{Kind: KindUpstream, Message: MsgUpstream}
	ErrInternal        = &Error{Kind: KindInternal, Message: MsgInternal}
)

// NewError 创建错误
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func internalError(err error) *Error {
	return NewError(KindInternal, MsgInternal, err)
}

// KindOf 返回错误类别，非 *Error 一律视为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Outcome 日志与指标用的结果标签
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
