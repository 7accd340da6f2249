package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/buzzline/internal/config"
	"github.com/relabs-tech/buzzline/internal/line"
	"github.com/relabs-tech/buzzline/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	clientQueue  = 32
	writeTimeout = time.Second
)

// Status is the latest follower state served at /api/status.
type Status struct {
	State       string            `json:"state"`
	Calibration *line.Calibration `json:"calibration,omitempty"`
	Frame       *telemetry.Frame  `json:"frame,omitempty"`
	LastEvent   *telemetry.Event  `json:"last_event,omitempty"`
}

// WSMessage is pushed to every websocket client.
type WSMessage struct {
	Type  string           `json:"type"`
	Frame *telemetry.Frame `json:"frame,omitempty"`
	Event *telemetry.Event `json:"event,omitempty"`
}

// Hub keeps the latest telemetry and fans it out to websocket clients.
// It is a telemetry.Sink so it can be fed from MQTT or in-process.
type Hub struct {
	mu      sync.RWMutex
	status  Status
	have    bool
	clients map[chan WSMessage]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan WSMessage]struct{})}
}

func (h *Hub) Frame(f telemetry.Frame) {
	h.mu.Lock()
	h.status.State = f.State
	h.status.Frame = &f
	h.have = true
	h.broadcast(WSMessage{Type: "frame", Frame: &f})
	h.mu.Unlock()
}

func (h *Hub) Event(e telemetry.Event) {
	h.mu.Lock()
	if e.State != "" {
		h.status.State = e.State
	}
	if e.Calibration != nil {
		cal := *e.Calibration
		h.status.Calibration = &cal
	}
	h.status.LastEvent = &e
	h.have = true
	h.broadcast(WSMessage{Type: "event", Event: &e})
	h.mu.Unlock()
}

// broadcast must be called with mu held. Slow clients lose messages.
func (h *Hub) broadcast(msg WSMessage) {
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Snapshot returns the latest status and whether anything arrived yet.
func (h *Hub) Snapshot() (Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status, h.have
}

func (h *Hub) join() chan WSMessage {
	ch := make(chan WSMessage, clientQueue)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) leave(ch chan WSMessage) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := h.Snapshot()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logrus.Warnf("web: json encode error: %v", err)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.join()
	defer h.leave(ch)

	// the reader only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if status, ok := h.Snapshot(); ok && status.Frame != nil {
		select {
		case ch <- WSMessage{Type: "frame", Frame: status.Frame}:
		default:
		}
	}

	for {
		select {
		case <-gone:
			return
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				logrus.Debugf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

// Handler serves the API, the websocket stream and the static dashboard.
func (h *Hub) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/ws", h.handleWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// FeedFromMQTT subscribes the hub to the follower topics.
func FeedFromMQTT(client mqtt.Client, cfg *config.Config, h *Hub) error {
	err := subscribe(client, cfg.TopicFrames, func(_ mqtt.Client, msg mqtt.Message) {
		var f telemetry.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			logrus.Warnf("web: frame unmarshal error: %v", err)
			return
		}
		h.Frame(f)
	})
	if err != nil {
		return err
	}
	events := func(_ mqtt.Client, msg mqtt.Message) {
		var e telemetry.Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			logrus.Warnf("web: event unmarshal error: %v", err)
			return
		}
		h.Event(e)
	}
	if err := subscribe(client, cfg.TopicEvents, events); err != nil {
		return err
	}
	return subscribe(client, cfg.TopicCalibration, func(c mqtt.Client, msg mqtt.Message) {
		if msg.Retained() {
			events(c, msg)
		}
	})
}

// RunWeb serves the dashboard until ctx is cancelled.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	if cfg.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is not set")
	}

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := NewHub()
	if err := FeedFromMQTT(client, cfg, hub); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: hub.Handler("web"),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logrus.Infof("web: listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "web server")
	}
	return nil
}
