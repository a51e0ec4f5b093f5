package api

// Procedure names, served under /trpc/{name}.
const (
	ProcCreateUser              = "createUser"
	ProcCreateConversation      = "createConversation"
	ProcGetConversations        = "getConversations"
	ProcUpdateConversationTitle = "updateConversationTitle"
	ProcSendMessage             = "sendMessage"
	ProcGetMessages             = "getMessages"
	ProcHealthcheck             = "healthcheck"
)

const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeMethodNotSupported = "METHOD_NOT_SUPPORTED"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

// Envelope is the body of every procedure response. Exactly one of Result
// and Error is set.
type Envelope[T any] struct {
	Result *Result[T]  `json:"result,omitempty"`
	Error  *ErrorShape `json:"error,omitempty"`
}

type Result[T any] struct {
	Data T `json:"data"`
}

type ErrorShape struct {
	Message    string       `json:"message"`
	Code       string       `json:"code"`
	HTTPStatus int          `json:"httpStatus"`
	Fields     []FieldError `json:"fields,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
