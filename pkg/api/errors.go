// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/settlement"
)

var (
	errMissingCaller = errors.New("missing caller")
	errBadID         = errors.New("malformed id")
	errBadBody       = errors.New("malformed request body")
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Stage string `json:"stage,omitempty"`
}

var statuses = []struct {
	err    error
	status int
}{
	{settlement.ErrDomainMismatch, http.StatusBadRequest},
	{settlement.ErrInvalidRecord, http.StatusBadRequest},
	{settlement.ErrInvalidAmount, http.StatusBadRequest},
	{errBadID, http.StatusBadRequest},
	{errBadBody, http.StatusBadRequest},
	{settlement.ErrInvalidSignature, http.StatusUnauthorized},
	{errMissingCaller, http.StatusUnauthorized},
	{settlement.ErrUnauthorized, http.StatusForbidden},
	{settlement.ErrAdNotFound, http.StatusNotFound},
	{settlement.ErrScreenNotFound, http.StatusNotFound},
	{settlement.ErrReplayedNonce, http.StatusConflict},
	{settlement.ErrAdExists, http.StatusConflict},
	{settlement.ErrScreenExists, http.StatusConflict},
	{settlement.ErrAdClosed, http.StatusConflict},
	{settlement.ErrAdInactive, http.StatusUnprocessableEntity},
	{settlement.ErrScreenInactive, http.StatusUnprocessableEntity},
	{settlement.ErrScreenMismatch, http.StatusUnprocessableEntity},
	{settlement.ErrBudgetExhausted, http.StatusUnprocessableEntity},
	{settlement.ErrInsufficientEscrow, http.StatusUnprocessableEntity},
	{settlement.ErrArithmeticOverflow, http.StatusUnprocessableEntity},
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Kind: settlement.Kind(err)}
	switch {
	case errors.Is(err, errMissingCaller):
		resp.Kind = "missing_caller"
	case errors.Is(err, errBadID), errors.Is(err, errBadBody):
		resp.Kind = "bad_request"
	}
	var serr *settlement.Error
	if errors.As(err, &serr) {
		resp.Stage = serr.Stage.String()
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			log.String("path", c.FullPath()),
			log.String("requestID", c.GetString(requestIDKey)),
			log.Error(err),
		)
		resp.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, resp)
}
