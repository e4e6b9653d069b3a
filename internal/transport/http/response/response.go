package response

import "takas-go/internal/domain"

type Resp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// New 保证 data 不为 null
func New(code int, msg string, data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data any) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error customMsg 为空时用 code 的默认文案（按语言）
func Error(lang Lang, code int, customMsg string) Resp {
	msg := customMsg
	if msg == "" {
		msg = codeText(lang, code)
	}
	return New(code, msg, struct{}{})
}

// FromError 业务错误统一映射；Internal 不外泄细节
func FromError(lang Lang, err error) Resp {
	kind := domain.KindOf(err)
	code := CodeOf(kind)
	msg := ""
	if kind != domain.KindInternal {
		msg = Localize(lang, domain.MessageOf(err))
	}
	return Error(lang, code, msg)
}
