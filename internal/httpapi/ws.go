package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autostreamhq/agent/internal/protocol"
)

// handleSessionWS runs the chat loop over a websocket: each client_message
// is processed as one turn and answered with an agent_message. Turns for
// the connection run sequentially, preserving conversation order.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	if _, err := s.sessions.Get(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.enqueue(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.ClientMessage:
			reply, err := s.agent.HandleTurn(ctx, sessionID, msg.Text)
			if err != nil {
				_, code := turnErrorStatus(err)
				s.enqueue(ctx, outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: sessionID,
					Code:      code,
					Source:    "agent",
					Retryable: retryableTurnError(err),
					Detail:    err.Error(),
				})
				continue
			}
			s.enqueue(ctx, outbound, protocol.AgentMessage{
				Type:         protocol.TypeAgentMessage,
				SessionID:    sessionID,
				Text:         reply.Text,
				Intent:       string(reply.Intent),
				LeadState:    string(reply.LeadState),
				LeadCaptured: reply.LeadCaptured,
				TSMs:         time.Now().UnixMilli(),
			})
		case protocol.ClientControl:
			if msg.Action == "end" {
				if _, err := s.sessions.End(sessionID); err == nil {
					s.agent.DropSession(sessionID)
					s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
					s.metrics.SessionEvents.WithLabelValues("ended").Inc()
				}
				s.enqueue(ctx, outbound, protocol.SystemEvent{
					Type:      protocol.TypeSystemEvent,
					SessionID: sessionID,
					Code:      "session_ended",
				})
				break readLoop
			}
		}

		select {
		case <-ctx.Done():
			break readLoop
		default:
		}
	}

	close(outbound)
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

// enqueue keeps websocket writes single-threaded; drops when the outbound
// queue is saturated rather than blocking the read loop.
func (s *Server) enqueue(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	default:
	}
}

func retryableTurnError(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AgentMessage:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
