package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/orchestrator"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind,omitempty"`
	Code  string      `json:"code,omitempty"`
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "BUSY"})
		return
	case errors.Is(err, orchestrator.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "INVALID_TRANSITION"})
		return
	}

	ae := apperr.Classify(err)
	c.JSON(statusFor(ae.Kind), errorResponse{Error: ae.Message, Kind: ae.Kind, Code: ae.Code})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: apperr.KindValidation, Code: apperr.CodeValidation})
}
