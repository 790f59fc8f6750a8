package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// updateBroker fans board-change notifications out to per-user SSE
// subscribers.
type updateBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func newUpdateBroker() *updateBroker {
	return &updateBroker{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *updateBroker) subscribe(userID string) chan []byte {
	ch := make(chan []byte, 1)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan []byte]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *updateBroker) unsubscribe(userID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[userID], ch)
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
	}
	b.mu.Unlock()
}

// broadcast delivers the snapshot to every subscriber of the user, dropping
// it for subscribers whose buffer is full (they will catch up on the next
// change).
func (b *updateBroker) broadcast(userID string, data []byte) {
	b.mu.Lock()
	for ch := range b.subs[userID] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.Unlock()
}

// RegisterStream wires the SSE endpoint and starts the redis subscription
// feeding it. The returned cancel stops the subscription loop.
func RegisterStream(e *echo.Echo, svc TaskService, auth Authenticator, rc *redis.Client, channel string, logger *log.Logger) context.CancelFunc {
	broker := newUpdateBroker()
	ctx, cancel := context.WithCancel(context.Background())
	go subscribeUpdates(ctx, logger, rc, svc, channel, broker)
	e.GET("/stream", streamTasks(svc, auth, broker))
	return cancel
}

// subscribeUpdates listens for board-changed notifications and broadcasts a
// fresh task snapshot to that user's subscribers.
func subscribeUpdates(ctx context.Context, logger *log.Logger, rc *redis.Client, svc TaskService, channel string, broker *updateBroker) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev struct {
					UserID string `json:"UserId"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.WithError(err).Error("unable to parse board update")
					continue
				}
				tasks, err := svc.List(ctx, ev.UserID)
				if err != nil {
					logger.WithError(err).Error("fetch tasks for stream")
					continue
				}
				data, err := json.Marshal(tasks)
				if err != nil {
					logger.WithError(err).Error("marshal tasks for stream")
					continue
				}
				broker.broadcast(ev.UserID, data)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func streamTasks(svc TaskService, auth Authenticator, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		ch := broker.subscribe(userID)
		defer broker.unsubscribe(userID, ch)

		// Initial snapshot so clients render without waiting for a change.
		tasks, err := svc.List(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		data, err := json.Marshal(tasks)
		if err != nil {
			c.Logger().Error(err)
			return err
		}
		if err := writeEvent(c, flusher, data); err != nil {
			return nil
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case data := <-ch:
				if err := writeEvent(c, flusher, data); err != nil {
					return nil
				}
			}
		}
	}
}

func writeEvent(c echo.Context, flusher http.Flusher, data []byte) error {
	if _, err := c.Response().Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
