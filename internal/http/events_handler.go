package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/axel-fz/echostore/internal/catalog"
	"github.com/axel-fz/echostore/internal/domain"
	"github.com/axel-fz/echostore/internal/session"
	"github.com/axel-fz/echostore/internal/store"
	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

// EventsHandler streams cart changes of a session as server-sent events.
type EventsHandler struct {
	registry  *session.Registry
	localizer *catalog.Localizer
	logger    *zap.Logger

	done     chan struct{}
	doneOnce sync.Once
}

func NewEventsHandler(registry *session.Registry, localizer *catalog.Localizer, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		registry:  registry,
		localizer: localizer,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Shutdown ends every open stream. Register it with http.Server.RegisterOnShutdown,
// since Server.Shutdown waits for active handlers without cancelling them.
func (h *EventsHandler) Shutdown() {
	h.doneOnce.Do(func() { close(h.done) })
}

type CartEventDTO struct {
	Kind string          `json:"kind"`
	Cart CartResponseDTO `json:"cart"`
}

// GET /api/v1/cart/events
//
// The first event is a snapshot of the current cart. A slow reader only
// receives the latest state.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}
	sess, ok := resolveSession(r.Context(), w, h.registry, h.logger)
	if !ok {
		return
	}
	messages := h.localizer.For(localeFrom(r))

	latest := make(chan store.Event, 1)
	stop := sess.Watch(func(e store.Event) {
		for {
			select {
			case latest <- e:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	})
	defer stop()

	// the stream outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot := CartEventDTO{Kind: "snapshot", Cart: toCartResponse(sess.Store().Cart(), messages)}
	if err := writeEvent(w, snapshot); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case e := <-latest:
			event := CartEventDTO{Kind: string(e.Kind), Cart: toCartResponse(domain.Cart{Items: e.Items}, messages)}
			if err := writeEvent(w, event); err != nil {
				h.logger.Debug("event stream closed", zap.String("session_id", sess.ID()), zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event CartEventDTO) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data)
	return err
}
