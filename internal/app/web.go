package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/motion_sensors/internal/bridge"
	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/format"
	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/session"
)

const permissionsPolicy = "geolocation=*, accelerometer=*, gyroscope=*, magnetometer=(), microphone=(), camera=()"

func init() {
	if err := mime.AddExtensionType(".webmanifest", "application/manifest+json"); err != nil {
		log.Printf("web: register manifest MIME type: %v", err)
	}
}

// webServer serves the browser page, the websocket bridge and the control
// API for one controller.
type webServer struct {
	ctrl      *session.Controller
	latest    *LatestStore
	ws        http.Handler
	precision format.Precision
	logger    *log.Logger
}

// permissionHeaders grants the page access to motion sensors and
// geolocation and isolates it cross-origin.
func permissionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Permissions-Policy", permissionsPolicy)
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Embedder-Policy", "require-corp")
		next.ServeHTTP(w, r)
	})
}

func (s *webServer) router(staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.Use(permissionHeaders)

	r.Handle("/ws", s.ws)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/readings", s.handleReadings).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/motion/start", s.handleStartAll).Methods(http.MethodPost)
	api.HandleFunc("/motion/stop", s.handleStopAll).Methods(http.MethodPost)
	api.HandleFunc("/motion/{category}/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/motion/{category}/stop", s.handleStop).Methods(http.MethodPost)

	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	return r
}

// startView is the JSON form of session.Result.
type startView struct {
	session.Status
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

func toStartView(r session.Result) startView {
	v := startView{Status: r.Status, Running: r.Running()}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

// handleReadings serves the latest reading of each active category.
func (s *webServer) handleReadings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.latest.Views(s.precision, s.active))
}

func (s *webServer) active(c motion.Category) bool {
	return s.ctrl.Status(c).State == motion.Active
}

func (s *webServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Statuses())
}

// handleStartAll blocks until the permission prompts are answered over the
// websocket or the request is abandoned.
func (s *webServer) handleStartAll(w http.ResponseWriter, r *http.Request) {
	results := s.ctrl.StartAll(r.Context())
	logResults(s.logger, results)
	views := make([]startView, 0, len(results))
	for _, res := range results {
		views = append(views, toStartView(res))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *webServer) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.ctrl.StopAll()
	s.latest.Clear(motion.Categories()...)
	s.writeJSON(w, http.StatusOK, s.ctrl.Statuses())
}

func (s *webServer) handleStart(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.category(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, toStartView(s.ctrl.Start(r.Context(), cat)))
}

func (s *webServer) handleStop(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.category(w, r)
	if !ok {
		return
	}
	s.ctrl.Stop(cat)
	s.latest.Clear(cat)
	s.writeJSON(w, http.StatusOK, s.ctrl.Status(cat))
}

func (s *webServer) category(w http.ResponseWriter, r *http.Request) (motion.Category, bool) {
	cat, err := motion.ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return 0, false
	}
	return cat, true
}

func (s *webServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("web: json encode error: %v", err)
	}
}

// RunWeb serves the browser page. The browser is the combined-event
// backend through the websocket; readings are kept for the API, echoed to
// the page, and published to MQTT when the broker is reachable.
func RunWeb() error {
	cfg := config.Get()
	logger := log.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	ws := bridge.NewWebSocketBridge(env, cfg.Precision(), logger)
	latest := NewLatestStore()
	sinks := []session.Sink{latest, ws}
	var observer session.Observer

	client, err := bridge.Connect(cfg.MQTTBroker, clientID(cfg.MQTTClientIDWeb))
	if err != nil {
		logger.Printf("web: MQTT unavailable, readings stay local: %v", err)
	} else {
		defer client.Disconnect(250)
		logger.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)
		pub := bridge.NewReadingPublisher(client, readingTopics(cfg), cfg.TopicStatus, logger)
		sinks = append(sinks, pub)
		observer = pub.PublishStatus
	}

	srv := &webServer{
		ctrl:      newController(env, cfg, session.Multi(sinks...), observer, logger),
		latest:    latest,
		ws:        ws,
		precision: cfg.Precision(),
		logger:    logger,
	}
	defer srv.ctrl.StopAll()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           srv.router(cfg.WebStaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("web: serving %s on http://localhost%s", cfg.WebStaticDir, httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Println("web: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
