package display

import (
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/nfnt/resize"

	"github.com/emotion-kiosk/platform/internal/history"
	"github.com/emotion-kiosk/platform/internal/kiosk"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type StateMessage struct {
	Type          string  `json:"type"`
	State         string  `json:"state"`
	Box           *Box    `json:"box,omitempty"`
	Faces         int     `json:"faces"`
	Label         string  `json:"label,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	ScanProgress  float64 `json:"scan_progress"`
	AudioProgress float64 `json:"audio_progress"`
}

type VerdictMessage struct {
	Type       string  `json:"type"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Machine is the kiosk surface the display talks to.
type Machine interface {
	Snapshot() kiosk.Snapshot
	Reset()
}

// FrameSource supplies the freshest camera frame for thumbnails.
type FrameSource interface {
	Latest() (image.Image, bool)
}

// Server pushes kiosk state over websockets and serves frame thumbnails.
type Server struct {
	machine Machine
	frames  FrameSource
	store   history.Store

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a display server and starts the verdict broadcaster.
func New(machine Machine, frames FrameSource, store history.Store) *Server {
	s := &Server{
		machine: machine,
		frames:  frames,
		store:   store,
		conns:   make(map[*websocket.Conn]struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go s.broadcastVerdicts()

	return s
}

// Close stops the verdict broadcaster and waits for it to exit.
func (s *Server) Close() {
	close(s.stopCh)
	<-s.doneCh
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/reset", s.handleReset)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	slog.Info("display connected", "remote", r.RemoteAddr)

	// The feed is push-only; CloseRead keeps the connection alive and
	// surfaces client disconnects through ctx.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("display disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			msg := stateMessage(s.machine.Snapshot())
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				slog.Debug("state push failed", "error", err)
				return
			}
		}
	}
}

// stateMessage maps a machine snapshot onto the wire format.
func stateMessage(snap kiosk.Snapshot) StateMessage {
	msg := StateMessage{
		Type:          "state",
		State:         snap.State,
		Faces:         snap.Faces,
		Label:         snap.Label,
		Confidence:    snap.Confidence,
		ScanProgress:  snap.ScanProgress,
		AudioProgress: snap.AudioProgress,
	}
	if snap.HasBox {
		msg.Box = &Box{
			X: snap.Box.Min.X,
			Y: snap.Box.Min.Y,
			W: snap.Box.Dx(),
			H: snap.Box.Dy(),
		}
	}
	return msg
}

func (s *Server) broadcastVerdicts() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case evt, ok := <-s.store.Events():
			if !ok {
				return
			}
			msg := VerdictMessage{
				Type:       "verdict",
				Label:      evt.Label,
				Confidence: evt.Confidence,
			}

			s.mu.RLock()
			for conn := range s.conns {
				go func(c *websocket.Conn) {
					_ = wsjson.Write(context.Background(), c, msg)
				}(conn)
			}
			s.mu.RUnlock()
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stateMessage(s.machine.Snapshot()))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.frames.Latest()
	if !ok {
		http.Error(w, "no frame available", http.StatusServiceUnavailable)
		return
	}

	thumb := frame
	if frame.Bounds().Dx() > ThumbWidth {
		thumb = resize.Resize(ThumbWidth, 0, frame, resize.Bilinear)
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, thumb, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		slog.Debug("thumbnail encode failed", "error", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.machine.Reset()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "reset_requested"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"recent": s.store.Recent(10),
		"counts": s.store.Counts(),
	})
}
