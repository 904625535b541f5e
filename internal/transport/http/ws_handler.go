package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// WSHandler runs one quiz attempt per websocket connection: the connection
// starts the attempt, streams countdown/state events out, and accepts
// answer/flag/navigation/submit messages in.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.AttemptService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string             `json:"questionId"`
	Value      domain.AnswerValue `json:"value"`
}

type flagPayload struct {
	QuestionID string `json:"questionId"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type submitPayload struct {
	Force bool `json:"force"`
}

type startedPayload struct {
	SessionID      string            `json:"sessionId"`
	Quiz           domain.Quiz       `json:"quiz"`
	Questions      []domain.Question `json:"questions"`
	TotalQuestions int               `json:"totalQuestions"`
}

type answerSavedPayload struct {
	QuestionID    string `json:"questionId"`
	AnsweredCount int    `json:"answeredCount"`
}

type confirmPayload struct {
	UnansweredCount int `json:"unansweredCount"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request, starts an attempt, and pumps events until the
// attempt or the connection ends.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctrl, err := h.service.Start(r.Context(), quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel := ctrl.Subscribe()
	defer cancel()
	defer func() {
		// Abandon only if the socket drops mid-attempt; completed and
		// abandoned attempts have already released their resources.
		if ctrl.Status() == domain.StatusInProgress {
			_ = h.service.Abandon(r.Context(), quizID, userID)
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
				if update.Status == domain.StatusCompleted && !resultSent {
					resultSent = true
					if result, ok := ctrl.Result(); ok {
						payload, _ := ctrl.Payload()
						summary := app.Project(result, ctrl.Quiz(), payload)
						select {
						case send <- outboundMessage[any]{Type: "result", Payload: summary}:
						case <-closeSignals:
							return
						}
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
		SessionID:      ctrl.SessionID(),
		Quiz:           ctrl.Quiz(),
		Questions:      ctrl.Questions(),
		TotalQuestions: len(ctrl.Questions()),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !h.handleMessage(r, ctrl, quizID, userID, inbound, send) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handleMessage dispatches one inbound message; returns false to end the read loop.
func (h *WSHandler) handleMessage(r *http.Request, ctrl *app.Controller, quizID, userID string, inbound inboundMessage, send chan outboundMessage[any]) bool {
	sendErr := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}

	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendErr(errors.New("invalid answer payload"))
			return true
		}
		if err := ctrl.SetAnswer(payload.QuestionID, payload.Value); err != nil {
			sendErr(err)
			return true
		}
		send <- outboundMessage[any]{Type: "answerSaved", Payload: answerSavedPayload{
			QuestionID:    payload.QuestionID,
			AnsweredCount: ctrl.Snapshot().AnsweredCount,
		}}
	case "flag":
		var payload flagPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendErr(errors.New("invalid flag payload"))
			return true
		}
		if err := ctrl.ToggleFlag(payload.QuestionID); err != nil {
			sendErr(err)
		}
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendErr(errors.New("invalid goto payload"))
			return true
		}
		ctrl.GoTo(payload.Index)
	case "next":
		ctrl.Next()
	case "previous":
		ctrl.Previous()
	case "submit":
		var payload submitPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendErr(errors.New("invalid submit payload"))
				return true
			}
		}
		_, err := ctrl.Submit(r.Context(), payload.Force)
		if errors.Is(err, domain.ErrUnansweredQuestions) {
			send <- outboundMessage[any]{Type: "confirmRequired", Payload: confirmPayload{
				UnansweredCount: ctrl.UnansweredCount(),
			}}
			return true
		}
		if err != nil {
			sendErr(err)
		}
	case "abandon":
		if err := h.service.Abandon(r.Context(), quizID, userID); err != nil {
			sendErr(err)
			return true
		}
		return false
	default:
		sendErr(errors.New("unsupported message type"))
	}
	return true
}
