package api

import (
	"chat-backend/pkg/api"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

type codedError struct {
	err    error
	code   int
	fields []api.FieldError
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by the name the caller sent rather than the Go field name.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must contain at least %s character(s)", fe.Param())
	case "max":
		return fmt.Sprintf("must contain at most %s character(s)", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return fmt.Sprintf("failed the '%s' check", fe.Tag())
	}
}

func validateRequest(data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return CodedError(http.StatusInternalServerError, fmt.Errorf("error validating request: %w", err))
	}

	fields := make([]api.FieldError, 0, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, api.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		msgs = append(msgs, fe.Field()+" "+fieldMessage(fe))
	}

	return &codedError{
		err:    fmt.Errorf("invalid input: %s", strings.Join(msgs, "; ")),
		code:   http.StatusBadRequest,
		fields: fields,
	}
}

// ParseRequest decodes and validates a JSON request body. An empty body is
// treated as an empty object.
func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("error parsing request body", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	if err := validateRequest(data); err != nil {
		return data, err
	}
	return data, nil
}

// ParseQueryInput reads query input either from the JSON encoded "input"
// parameter or from plain query parameters.
func ParseQueryInput[T any](r *http.Request) (T, error) {
	var data T
	if input := r.URL.Query().Get("input"); input != "" {
		if err := json.Unmarshal([]byte(input), &data); err != nil {
			slog.Error("error parsing query input", "error", err)
			return data, CodedErrorf(http.StatusBadRequest, "unable to parse request input")
		}
	} else {
		var err error
		if data, err = ParseRequestQueryParams[T](r); err != nil {
			return data, err
		}
	}
	if err := validateRequest(data); err != nil {
		return data, err
	}
	return data, nil
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&data, r.Form); err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return api.CodeBadRequest
	case http.StatusNotFound:
		return api.CodeNotFound
	case http.StatusConflict:
		return api.CodeConflict
	case http.StatusMethodNotAllowed:
		return api.CodeMethodNotSupported
	default:
		return api.CodeInternal
	}
}

func WriteRPCError(w http.ResponseWriter, err error) {
	shape := api.ErrorShape{
		Message:    "internal server error",
		Code:       api.CodeInternal,
		HTTPStatus: http.StatusInternalServerError,
	}

	var cerr *codedError
	if errors.As(err, &cerr) {
		shape.HTTPStatus = cerr.code
		shape.Code = errorCode(cerr.code)
		shape.Fields = cerr.fields
		if cerr.code != http.StatusInternalServerError {
			shape.Message = err.Error()
		}
	} else {
		slog.Error("recieved non coded error from procedure", "error", err)
	}

	WriteJsonResponse(w, shape.HTTPStatus, api.Envelope[any]{Error: &shape})
}

// RPCHandler wraps a procedure implementation and writes its result or error
// in the response envelope.
func RPCHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			WriteRPCError(w, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, http.StatusOK, api.Envelope[any]{Result: &api.Result[any]{Data: res}})
	}
}

func WriteJsonResponse(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}
