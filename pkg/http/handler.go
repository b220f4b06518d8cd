package http

import "github.com/labstack/echo/v4"

// Handler registers its routes on the echo instance at server start.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
