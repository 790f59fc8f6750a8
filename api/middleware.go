package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DecompressRequests transparently inflates gzip-encoded request bodies so
// handlers always see plain JSON. Invalid gzip payloads get a 400.
func DecompressRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			encoding := req.Header.Get(echo.HeaderContentEncoding)
			if !strings.Contains(strings.ToLower(encoding), "gzip") {
				return next(c)
			}

			body := req.Body
			gr, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}

			req.Body = &gzipBody{Reader: gr, underlying: body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)

			return next(c)
		}
	}
}

type gzipBody struct {
	*gzip.Reader
	underlying io.Closer
}

func (g *gzipBody) Close() error {
	err := g.Reader.Close()
	if cerr := g.underlying.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
