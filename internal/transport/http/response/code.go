package response

import "takas-go/internal/domain"

// 业务错误码直接沿用 HTTP 语义
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeTooLarge     = 413
	CodeTooMany      = 429
	CodeServerError  = 500
	CodeUnavailable  = 503
	CodeTimeout      = 504
)

// CodeMsgMap 英文兜底文案
var CodeMsgMap = map[int]string{
	CodeOK:           "OK",
	CodeBadRequest:   "Bad Request",
	CodeUnauthorized: "Unauthorized",
	CodeForbidden:    "Forbidden",
	CodeNotFound:     "Not Found",
	CodeConflict:     "Conflict",
	CodeTooLarge:     "Request Entity Too Large",
	CodeTooMany:      "Too Many Requests",
	CodeServerError:  "Internal Server Error",
	CodeUnavailable:  "Service Unavailable",
	CodeTimeout:      "Timeout",
}

func CodeOf(k domain.Kind) int {
	switch k {
	case domain.KindInvalid:
		return CodeBadRequest
	case domain.KindUnauthorized:
		return CodeUnauthorized
	case domain.KindForbidden:
		return CodeForbidden
	case domain.KindNotFound:
		return CodeNotFound
	case domain.KindConflict:
		return CodeConflict
	case domain.KindUnavailable:
		return CodeUnavailable
	default:
		return CodeServerError
	}
}
