package rpc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server exposes the dispatcher over HTTP: a single POST endpoint taking
// the request envelope.
type Server struct {
	echo       *echo.Echo
	dispatcher *Dispatcher
	logger     logging.Logger
	addr       string
}

func NewServer(addr string, dispatcher *Dispatcher, logger logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		dispatcher: dispatcher,
		logger:     logger.With("module", "rpc"),
		addr:       addr,
	}
	e.POST("/rpc", s.handle)
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return s
}

// handle decodes the envelope and always answers 200 with a response
// envelope; failures travel in the error field, not in HTTP status codes.
func (s *Server) handle(c echo.Context) error {
	req := &Request{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusOK, &Response{Error: &Error{
			Code:    common.CodeBadRequest,
			Message: "malformed request envelope",
		}})
	}

	ctx := c.Request().Context()
	resp := s.dispatcher.Dispatch(ctx, req)

	if resp.Error != nil {
		s.logger.Info(ctx, "request failed", "method", req.Method, "code", resp.Error.Code)
	} else {
		s.logger.Debug(ctx, "request served", "method", req.Method)
	}
	return c.JSON(http.StatusOK, resp)
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info(ctx, "server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info(shutdownCtx, "shutting down")
	return s.echo.Shutdown(shutdownCtx)
}
