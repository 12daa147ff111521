package server

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mfittko/gitdrop/internal/deploy"
	"github.com/mfittko/gitdrop/internal/service"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 5 * time.Second
)

// Message types on the deploy stream.
const (
	MessageStep   = "step"
	MessageResult = "result"
)

// StepMessage reports progress of one deployment step.
type StepMessage struct {
	Type string `json:"type"`
	deploy.Event
}

// ResultMessage is the last message on the deploy stream.
type ResultMessage struct {
	Type        string `json:"type"`
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	URL         string `json:"deployment_url,omitempty"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
	Example     string `json:"example,omitempty"`
	Details     string `json:"details,omitempty"`
}

// handleDeployStream reads one deploy request from the websocket, streams
// a StepMessage per step transition and finishes with a ResultMessage.
func (s *Server) handleDeployStream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	readCtx, cancel := context.WithTimeout(r.Context(), streamReadTimeout)
	var req service.DeployRequest
	err = wsjson.Read(readCtx, conn, &req)
	cancel()
	if err != nil {
		s.logger.Warn("Failed to read deploy request", "error", err)
		conn.Close(websocket.StatusUnsupportedData, "expected a JSON deploy request")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	send := func(v any) {
		writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, v); err != nil {
			s.logger.Debug("Dropped stream message", "error", err)
		}
	}

	res, err := s.svc.CloneAndDeploy(ctx, req, func(e deploy.Event) {
		send(StepMessage{Type: MessageStep, Event: e})
	})

	final := ResultMessage{Type: MessageResult}
	if err != nil {
		_, body := errorPayload(err)
		final.Error = body.Error
		final.Example = body.Example
		final.Details = body.Details
	} else {
		final.Success = true
		final.Message = res.Message
		final.URL = res.URL
		final.Destination = res.Destination
		final.Details = res.Details
	}
	send(final)

	conn.Close(websocket.StatusNormalClosure, "")
}
