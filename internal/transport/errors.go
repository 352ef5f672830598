package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errorMapping pairs a sentinel error with the response it produces.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// An empty message means the error's own text is shown.
var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, middleware.CodeValidation, ""},
	{service.ErrInvalidCredentials, http.StatusBadRequest, middleware.CodeValidation, "Invalid credentials"},
	{service.ErrEmptyCart, http.StatusBadRequest, middleware.CodeEmptyCart, "Cart is empty"},
	{service.ErrNoSelection, http.StatusBadRequest, middleware.CodeNoSelection, "No items selected for checkout"},
	{service.ErrInvalidToken, http.StatusUnauthorized, middleware.CodeUnauthorized, "Token is not valid"},
	{service.ErrForbidden, http.StatusForbidden, middleware.CodeForbidden, "You can only change your own products"},
	{repository.ErrUserNotFound, http.StatusNotFound, middleware.CodeNotFound, "User not found"},
	{repository.ErrProductNotFound, http.StatusNotFound, middleware.CodeNotFound, "Product not found"},
	{repository.ErrCartNotFound, http.StatusNotFound, middleware.CodeNotFound, "Cart not found"},
	{repository.ErrOrderNotFound, http.StatusNotFound, middleware.CodeNotFound, "Order not found"},
	{repository.ErrUserAlreadyExists, http.StatusConflict, middleware.CodeConflict, "User already exists with this email"},
	{service.ErrCartBusy, http.StatusConflict, middleware.CodeConflict, ""},
}

// respondWithServiceError maps err to a status and error code. Anything
// unrecognised is a 500 carrying fallback as its message.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.message
		if message == "" {
			message = err.Error()
		}
		logger.Debug("Request rejected", append(fields, zap.String("code", m.code))...)
		middleware.RespondWithError(w, m.status, m.code, message)
		return
	}

	logger.Error(fallback, fields...)
	middleware.RespondWithError(w, http.StatusInternalServerError, middleware.CodeUnexpected, fallback)
}

// respondWithDecodeError reports a body that failed to decode or validate.
func respondWithDecodeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Debug("Request validation failed", zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}

	middleware.RespondWithError(w, http.StatusBadRequest, middleware.CodeValidation, "invalid request body")
}

// currentUser returns the authenticated caller, answering 401 itself when
// the route was mounted without the auth middleware.
func currentUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, middleware.CodeUnauthorized, "No token, authorization denied")
	}
	return userID, ok
}

// pathID parses a uuid path parameter, answering 400 when it is malformed.
func pathID(w http.ResponseWriter, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, middleware.CodeValidation, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}
