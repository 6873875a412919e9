package handler

import (
	"net/http"

	"github.com/overtimestaff/overtimestaff/internal/errHandler"
	"github.com/overtimestaff/overtimestaff/internal/response"
	"github.com/overtimestaff/overtimestaff/internal/version"
)

type HealthCheckHandler struct {
	ErrHandler *errHandler.ErrorHandler
}

func NewHealthCheckHandler(errHandler *errHandler.ErrorHandler) *HealthCheckHandler {
	return &HealthCheckHandler{
		ErrHandler: errHandler,
	}
}

func (h *HealthCheckHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":  "available",
		"version": version.Get(),
	}

	err := response.JSONOkResponse(w, data, "", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
