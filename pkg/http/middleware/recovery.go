package middleware

import (
	applogger "Screener/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Recover turns handler panics into 500 responses and logs them with the
// stack trace.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize: 8 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			if l != nil {
				l.Error("http handler panic",
					applogger.Error(err),
					applogger.String("path", c.Path()),
					applogger.String("stack", string(stack)),
				)
			}
			return err
		},
	})
}
