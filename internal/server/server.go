// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package server exposes the view model and the picker as a local JSON API for map
// front-ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wneessen/geopicker/internal/geocode"
	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/picker"
	"github.com/wneessen/geopicker/internal/vartype"
	"github.com/wneessen/geopicker/internal/viewmodel"
)

const (
	shutdownTimeout   = time.Second * 5
	readHeaderTimeout = time.Second * 10
)

var ErrNoLocation = errors.New("no location available")

type Server struct {
	viewModel *viewmodel.ViewModel
	picker    *picker.Picker
	logger    *logger.Logger
	router    *gin.Engine
}

type locationResponse struct {
	Location vartype.Variable[location.Data] `json:"location"`
}

// coordinateRequest requires both coordinates to be present, so an empty body does not
// bind to 0,0.
type coordinateRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (r coordinateRequest) location() location.Data {
	return location.Data{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

type addressRequest struct {
	LatLng string `json:"latlng"`
}

type addressResponse struct {
	Addresses []geocode.Result `json:"addresses"`
	Status    string           `json:"status"`
	Location  string           `json:"location,omitempty"`
	CacheHit  bool             `json:"cache_hit"`
	Error     string           `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(vm *viewmodel.ViewModel, p *picker.Picker, log *logger.Logger) *Server {
	s := &Server{
		viewModel: vm,
		picker:    p,
		logger:    log,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	api.GET("/location", s.getLocation)
	api.PUT("/location", s.putLocation)
	api.GET("/address", s.getAddress)
	api.POST("/address", s.postAddress)
	api.GET("/picker", s.getPicker)
	api.POST("/picker/tap", s.tapPicker)
	api.POST("/picker/confirm", s.confirmPicker)
	api.POST("/picker/reset", s.resetPicker)
	s.router = router

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", slog.String("addr", addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start API server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		s.logger.Debug("api request", slog.String("method", ctx.Request.Method),
			slog.String("path", ctx.Request.URL.Path), slog.Int("status", ctx.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

func (s *Server) getLocation(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, locationResponse{Location: s.viewModel.Location().Get()})
}

func (s *Server) putLocation(ctx *gin.Context) {
	var req coordinateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	loc := req.location()
	if err := s.viewModel.UpdateLocation(loc); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, locationResponse{Location: vartype.NewVariable(loc)})
}

func (s *Server) getAddress(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.addressState())
}

// postAddress starts an address lookup for the given latlng, or for the current location if
// the request carries none.
func (s *Server) postAddress(ctx *gin.Context) {
	var req addressRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	if req.LatLng == "" {
		loc, ok := s.viewModel.Location().Get().Get()
		if !ok {
			ctx.JSON(http.StatusConflict, errorResponse{Error: ErrNoLocation.Error()})
			return
		}
		req.LatLng = loc.String()
	}
	if err := s.viewModel.FetchAddress(req.LatLng); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusAccepted, s.addressState())
}

func (s *Server) addressState() addressResponse {
	snap := s.viewModel.Snapshot()
	resp := addressResponse{
		Addresses: snap.Addresses,
		Status:    snap.Fetch.Status.String(),
		CacheHit:  snap.Fetch.CacheHit,
	}
	if snap.Fetch.Status != viewmodel.Idle && !errors.Is(snap.Fetch.Err, location.ErrInvalidLatLng) {
		resp.Location = snap.Fetch.Location.String()
	}
	if snap.Fetch.Err != nil {
		resp.Error = snap.Fetch.Err.Error()
	}
	return resp
}

func (s *Server) getPicker(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.picker.View())
}

func (s *Server) tapPicker(ctx *gin.Context) {
	var req coordinateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.picker.Tap(req.location()); err != nil {
		ctx.JSON(pickerStatus(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, s.picker.View())
}

func (s *Server) confirmPicker(ctx *gin.Context) {
	if _, err := s.picker.Confirm(); err != nil {
		ctx.JSON(pickerStatus(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, s.picker.View())
}

func (s *Server) resetPicker(ctx *gin.Context) {
	s.picker.Reset()
	ctx.JSON(http.StatusOK, s.picker.View())
}

func pickerStatus(err error) int {
	if errors.Is(err, picker.ErrConfirmed) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
