// internal/api/handler/handler.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tenant-ledger/internal/api/middleware"
	"tenant-ledger/internal/api/types"
	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/util"
)

// DefaultTimeout bounds every API request.
const DefaultTimeout = 30 * time.Second

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Amounts are validated by value.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decodeAndValidate reads a JSON body into dst and validates its tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		types.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fieldMessage(fe)
			}
			types.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", details)
			return false
		}
		types.Error(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email"
	default:
		return "invalid value"
	}
}

// owner returns the authenticated owner or writes 401.
func owner(w http.ResponseWriter, r *http.Request) (domain.Owner, bool) {
	o, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		types.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return o, ok
}

// pagination parses limit and offset, falling back to 20 and 0.
func pagination(r *http.Request) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// respondWithError maps service errors onto HTTP statuses. Only sanitised
// messages reach the client; everything else is logged.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	var details map[string]any

	var pe *util.PaymentError
	switch {
	case errors.As(err, &pe) && errors.Is(err, util.ErrGatewayTimeout):
		status, code, message = http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", pe.Message
	case errors.As(err, &pe):
		status, code, message = http.StatusBadGateway, "PAYMENT_FAILED", pe.Message
		details = map[string]any{"provider": pe.Provider}
	case util.IsError(err, util.ErrInsufficientFunds):
		status, code, message = http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "insufficient funds"
		if ife, ok := util.AsInsufficientFunds(err); ok {
			details = map[string]any{"required": ife.Required, "available": ife.Available}
		}
	case util.IsError(err, util.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case util.IsError(err, util.ErrNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "resource not found"
	case util.IsError(err, util.ErrForbidden):
		status, code, message = http.StatusForbidden, "FORBIDDEN", "forbidden"
	case util.IsError(err, util.ErrDuplicateEntry):
		status, code, message = http.StatusConflict, "DUPLICATE", "resource already exists"
	case util.IsError(err, util.ErrProviderNotSupported):
		status, code, message = http.StatusUnprocessableEntity, "PROVIDER_NOT_SUPPORTED", err.Error()
	case util.IsError(err, util.ErrProviderUnavailable):
		status, code, message = http.StatusUnprocessableEntity, "PROVIDER_UNAVAILABLE", err.Error()
	case util.IsError(err, util.ErrPackageInactive):
		status, code, message = http.StatusUnprocessableEntity, "PACKAGE_INACTIVE", err.Error()
	case util.IsError(err, util.ErrGatewayInit):
		status, code, message = http.StatusBadGateway, "GATEWAY_INIT_FAILED", "payment gateway could not be initialised"
	case util.IsError(err, util.ErrGatewayTimeout):
		status, code, message = http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "payment gateway timed out"
	case util.IsError(err, util.ErrPaymentFailed):
		status, code, message = http.StatusBadGateway, "PAYMENT_FAILED", "payment processing failed"
	}

	event := util.Log(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = util.Log(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")

	types.Error(w, status, code, message, details)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", raw, util.ErrInvalidInput)
	}
	return id, nil
}
