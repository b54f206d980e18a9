// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luxfi/samizdat/pkg/analytics"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/settlement"
	"github.com/luxfi/samizdat/pkg/tags"
)

// FundRequest is the body of POST /ads/:id/fund.
type FundRequest struct {
	Amount uint64 `json:"amount"`
}

// ActiveRequest is the body of PUT /ads/:id/active and /screens/:id/active.
type ActiveRequest struct {
	Active bool `json:"active"`
}

// BalanceResponse reports a wallet's accumulated credit.
type BalanceResponse struct {
	Wallet  ids.ID `json:"wallet"`
	Balance uint64 `json:"balance"`
	Units   string `json:"units"`
}

func (s *Server) submitProof(c *gin.Context) {
	var req settlement.SubmitProofRequest
	if !s.bind(c, &req) {
		return
	}
	receipt, err := s.engine.SubmitProof(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) createAd(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req settlement.CreateAdRequest
	if !s.bind(c, &req) {
		return
	}
	req.Authority = caller
	entry, err := s.engine.CreateAd(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) listAds(c *gin.Context) {
	activeOnly := false
	if v := c.Query("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(c, fmt.Errorf("%w: active=%q", errBadBody, v))
			return
		}
		activeOnly = parsed
	}
	ads, err := s.engine.Ads(c.Request.Context(), activeOnly)
	if err != nil {
		s.fail(c, err)
		return
	}
	if ads == nil {
		ads = []settlement.AdEntry{}
	}
	c.JSON(http.StatusOK, ads)
}

func (s *Server) getAd(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	ad, err := s.engine.Ad(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement.AdEntry{ID: id, Ad: ad})
}

func (s *Server) fundAd(c *gin.Context) {
	caller, id, ok := s.callerAndID(c)
	if !ok {
		return
	}
	var body FundRequest
	if !s.bind(c, &body) {
		return
	}
	ad, err := s.engine.FundAd(c.Request.Context(), &settlement.FundAdRequest{Caller: caller, Ad: id, Amount: body.Amount})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement.AdEntry{ID: id, Ad: ad})
}

func (s *Server) setAdActive(c *gin.Context) {
	caller, id, ok := s.callerAndID(c)
	if !ok {
		return
	}
	var body ActiveRequest
	if !s.bind(c, &body) {
		return
	}
	ad, err := s.engine.SetAdActive(c.Request.Context(), &settlement.SetActiveRequest{Caller: caller, ID: id, Active: body.Active})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement.AdEntry{ID: id, Ad: ad})
}

func (s *Server) updateAd(c *gin.Context) {
	caller, id, ok := s.callerAndID(c)
	if !ok {
		return
	}
	var req settlement.UpdateAdRequest
	if !s.bind(c, &req) {
		return
	}
	req.Caller, req.Ad = caller, id
	ad, err := s.engine.UpdateAd(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement.AdEntry{ID: id, Ad: ad})
}

func (s *Server) closeAd(c *gin.Context) {
	caller, id, ok := s.callerAndID(c)
	if !ok {
		return
	}
	resp, err := s.engine.CloseAd(c.Request.Context(), &settlement.CloseAdRequest{Caller: caller, Ad: id})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createScreen(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req settlement.CreateScreenRequest
	if !s.bind(c, &req) {
		return
	}
	req.Owner = caller
	entry, err := s.engine.CreateScreen(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) getScreen(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	screen, err := s.engine.Screen(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement.ScreenEntry{ID: id, Screen: screen})
}

func (s *Server) setScreenActive(c *gin.Context) {
	caller, id, ok := s.callerAndID(c)
	if !ok {
		return
	}
	var body ActiveRequest
	if !s.bind(c, &body) {
		return
	}
	screen, err := s.engine.SetScreenActive(c.Request.Context(), &settlement.SetActiveRequest{Caller: caller, ID: id, Active: body.Active})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement.ScreenEntry{ID: id, Screen: screen})
}

func (s *Server) updateScreen(c *gin.Context) {
	caller, id, ok := s.callerAndID(c)
	if !ok {
		return
	}
	var req settlement.UpdateScreenRequest
	if !s.bind(c, &req) {
		return
	}
	req.Caller, req.Screen = caller, id
	screen, err := s.engine.UpdateScreen(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement.ScreenEntry{ID: id, Screen: screen})
}

func (s *Server) getBalance(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	balance, err := s.engine.Balance(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Wallet:  id,
		Balance: balance,
		Units:   analytics.FormatUnits(balance).String(),
	})
}

func (s *Server) getPublisher(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	pub, err := s.engine.Publisher(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pub)
}

func (s *Server) listTags(c *gin.Context) {
	c.JSON(http.StatusOK, tags.Table())
}

func (s *Server) stats(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusOK, analytics.Summary{})
		return
	}
	c.JSON(http.StatusOK, s.tracker.Summary())
}

func (s *Server) adStats(c *gin.Context) {
	s.report(c, func(id ids.ID) (analytics.Report, bool) { return s.tracker.Campaign(id) })
}

func (s *Server) screenStats(c *gin.Context) {
	s.report(c, func(id ids.ID) (analytics.Report, bool) { return s.tracker.Screen(id) })
}

func (s *Server) report(c *gin.Context, lookup func(ids.ID) (analytics.Report, bool)) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if s.tracker == nil {
		c.JSON(http.StatusOK, analytics.Report{ID: id})
		return
	}
	report, found := lookup(id)
	if !found {
		report = analytics.Report{ID: id}
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) recentEvents(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusOK, []settlement.Event{})
		return
	}
	filter := analytics.QueryFilter{Limit: 100}
	if v := c.Query("type"); v != "" {
		filter.Types = strings.Split(v, ",")
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.fail(c, fmt.Errorf("%w: limit=%q", errBadBody, v))
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.fail(c, fmt.Errorf("%w: since=%q", errBadBody, v))
			return
		}
		filter.Since = since
	}
	for param, dst := range map[string]*ids.ID{"ad": &filter.Ad, "screen": &filter.Screen} {
		if v := c.Query(param); v != "" {
			id, err := ids.FromString(v)
			if err != nil {
				s.fail(c, fmt.Errorf("%w: %s: %v", errBadID, param, err))
				return
			}
			*dst = id
		}
	}
	c.JSON(http.StatusOK, s.tracker.Recent(filter))
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadBody, err))
		return false
	}
	return true
}

func (s *Server) pathID(c *gin.Context) (ids.ID, bool) {
	id, err := ids.FromString(c.Param("id"))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadID, err))
		return ids.Empty, false
	}
	return id, true
}

func (s *Server) caller(c *gin.Context) (ids.ID, bool) {
	v := c.GetHeader(CallerHeader)
	if v == "" {
		s.fail(c, errMissingCaller)
		return ids.Empty, false
	}
	id, err := ids.FromString(v)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: caller: %v", errBadID, err))
		return ids.Empty, false
	}
	return id, true
}

func (s *Server) callerAndID(c *gin.Context) (ids.ID, ids.ID, bool) {
	caller, ok := s.caller(c)
	if !ok {
		return ids.Empty, ids.Empty, false
	}
	id, ok := s.pathID(c)
	return caller, id, ok
}
