package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// requestBodyMaxSize bounds task payloads; anything larger is not a task.
const requestBodyMaxSize = 64 * 1024

// Register wires up all task routes on the provided Echo instance.
func Register(e *echo.Echo, svc TaskService, auth Authenticator, logger *log.Logger) {
	e.GET("/tasks", getTasks(svc, auth, logger))
	e.POST("/tasks", postTask(svc, auth))
	e.GET("/tasks/:id", getTask(svc, auth))
	e.PUT("/tasks/:id", putTask(svc, auth))
	e.DELETE("/tasks/:id", deleteTask(svc, auth))
	e.POST("/tasks/:id/move", moveTask(svc, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}
}

func getTasks(svc TaskService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newTaskRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.Observe("auth", time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		requested := c.QueryParam("user_id")
		if requested == "" {
			metrics.SetErrorStage("missing_user_id")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "User ID is required"})
			return err
		}
		if requested != userID {
			metrics.SetErrorStage("owner_mismatch")
			err = c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrForbidden.Error()})
			return err
		}

		fetchStart := time.Now()
		list, fetchErr := svc.List(c.Request().Context(), userID)
		metrics.Observe("fetch", time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = writeErr(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(list))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, list)
		metrics.Observe("encode", time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(svc TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if req.UserID == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "User ID is required"})
		}
		if req.UserID != userID {
			return c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrForbidden.Error()})
		}

		created, err := svc.Create(c.Request().Context(), userID, domain.Draft{
			Title:       req.Title,
			Description: req.Description,
			StatusID:    req.StatusID,
			PriorityID:  req.PriorityID,
		})
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func getTask(svc TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		task, err := svc.Get(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func putTask(svc TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if req.Title == "" || req.StatusID == 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Title and status ID are required"})
		}

		patch := domain.Patch{
			Title:       &req.Title,
			Description: &req.Description,
			StatusID:    &req.StatusID,
		}
		if req.PriorityID != 0 {
			patch.PriorityID = &req.PriorityID
		}
		if _, err := svc.Update(c.Request().Context(), userID, c.Param("id"), patch); err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "Task updated successfully"})
	}
}

func deleteTask(svc TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := svc.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "Task deleted successfully"})
	}
}

func moveTask(svc TaskService, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req moveTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		moved, err := svc.Move(c.Request().Context(), userID, c.Param("id"), req.StatusID, req.Position)
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, moved)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses: validation 400, not
// found 404, forbidden 403, transient store failure 503.
func writeErr(c echo.Context, err error) error {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: ve.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Task not found"})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorResponse{Error: domain.ErrForbidden.Error()})
	case domain.IsTransient(err):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
