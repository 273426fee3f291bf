package global

// Msg HTTP 接口统一返回
type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Sucess(data any) *Msg {
	return &Msg{
		Code: 200,
		Msg:  "",
		Data: data,
	}
}

func Fail(code int, msg string) *Msg {
	return &Msg{
		Code: code,
		Msg:  msg,
	}
}
