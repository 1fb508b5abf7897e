package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/appstats"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/label"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/pubsub/events"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/titanous/json5"
)

const maxBodySize = 64 << 10

// HTTPServer is the local control surface and the artifact download endpoint.
type HTTPServer struct {
	cfg    config.HTTP
	server *Server
	srv    *http.Server
}

func NewHTTPServer(cfg config.HTTP, server *Server) *HTTPServer {
	h := &HTTPServer{cfg: cfg, server: server}
	h.srv = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

func (h *HTTPServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, logRequests)

	r.Get("/healthz", h.healthz)
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.server.Status())
	})

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.deleteSession)
		r.Post("/source", h.command(events.SelectSourceKey))
		r.Post("/cancel", h.command(events.CancelPreviewKey))
		r.Post("/start", h.command(events.StartRecordingKey))
		r.Post("/stop", h.command(events.StopRecordingKey))
		r.Post("/reset", h.command(events.ResetRecordingKey))
	})

	r.Get("/artifacts/{token}", h.download)
	r.Head("/artifacts/{token}", h.download)

	return r
}

// Serve blocks until the server is shut down.
func (h *HTTPServer) Serve() error {
	log.Infof("starting http server on %s", h.cfg.ListenAddress)
	if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithField("request", middleware.GetReqID(r.Context())).
			Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (h *HTTPServer) healthz(w http.ResponseWriter, r *http.Request) {
	if ps := h.server.pubsub; ps != nil {
		if err := ps.Check(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPServer) getSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.server.Session(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrUnknownSession)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HTTPServer) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.server.CloseSession(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, ErrUnknownSession)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commandBody struct {
	Title       string `json:"title"`
	SourceURL   string `json:"sourceUrl"`
	AudioSource string `json:"audioSource"`
}

func (h *HTTPServer) command(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body commandBody
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err == nil && len(data) > 0 {
			err = json5.Unmarshal(data, &body)
		}
		if err != nil {
			appstats.OnServerRequest(id, false)
			writeError(w, http.StatusBadRequest, fmt.Errorf("malformed body: %w", err))
			return
		}
		appstats.OnServerRequest(id, true)

		st, err := h.server.Dispatch(r.Context(), Command{
			Id:          id,
			SessionId:   chi.URLParam(r, "id"),
			Title:       body.Title,
			SourceURL:   body.SourceURL,
			AudioSource: body.AudioSource,
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		appstats.OnServerResponse(id + events.ResponseSuffix)
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *HTTPServer) download(w http.ResponseWriter, r *http.Request) {
	a, err := h.server.Links().Resolve(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		name = a.FileName
	}
	name = label.WithExtension(name, a.Format.Extension)

	f, err := a.Open()
	if err != nil {
		writeError(w, http.StatusGone, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", a.Format.Container())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, a.CreatedAt, f)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownSession), errors.Is(err, recorder.ErrLinkNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotAllowed), errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, session.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("could not write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
