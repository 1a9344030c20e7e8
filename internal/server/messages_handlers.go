package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/messaging"
	"github.com/sandwichproject/coordinator/internal/users"
	"go.uber.org/zap"
)

type realtimeEventPayload struct {
	Type      string `json:"type"`
	MessageID int64  `json:"messageId,omitempty"`
	ThreadID  int64  `json:"threadId,omitempty"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// visibleTo reports whether a board message may be shown to the user. Direct
// messages are limited to their sender and recipient.
func visibleTo(message messaging.Message, user users.User) bool {
	return message.RecipientID == "" || message.RecipientID == user.ID || message.SenderID == user.ID
}

func visibleMessages(messages []messaging.Message, user users.User) []messaging.Message {
	visible := make([]messaging.Message, 0, len(messages))
	for _, message := range messages {
		if visibleTo(message, user) {
			visible = append(visible, message)
		}
	}
	return visible
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var (
		all []messaging.Message
		err error
	)
	if limit > 0 {
		all, err = h.repository.GetRecentMessages(ctx, limit)
	} else {
		all, err = h.repository.GetAllMessages(ctx)
	}
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_messages", err)
		return
	}
	user, _ := currentUser(c)
	c.JSON(http.StatusOK, visibleMessages(all, user))
}

func (h *httpHandler) handleCreateMessage(c *gin.Context) {
	input, ok := bindMessageInput(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	created, err := h.repository.CreateMessage(c.Request.Context(), input.Record(user.ID, user.Name()))
	if err != nil {
		h.respondStoreError(c, "failed_to_create_message", err)
		return
	}
	h.announce(RealtimeEventMessageCreated, created)
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleCreateReply(c *gin.Context) {
	parentID, ok := pathID(c)
	if !ok {
		return
	}
	input, ok := bindMessageInput(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	reply, err := h.repository.CreateReply(c.Request.Context(), input.Record(user.ID, user.Name()), parentID)
	if err != nil {
		h.respondStoreError(c, "failed_to_create_reply", err)
		return
	}
	if reply == nil {
		respondNotFound(c)
		return
	}
	h.announce(RealtimeEventMessageCreated, *reply)
	c.JSON(http.StatusCreated, reply)
}

func (h *httpHandler) handleMessageThread(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	message, err := h.repository.GetMessage(ctx, id)
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_message", err)
		return
	}
	user, _ := currentUser(c)
	if message == nil || !visibleTo(*message, user) {
		respondNotFound(c)
		return
	}
	threadID := message.ThreadID
	if threadID == 0 {
		threadID = message.ID
	}
	thread, err := h.repository.GetThreadMessages(ctx, threadID)
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_thread", err)
		return
	}
	c.JSON(http.StatusOK, visibleMessages(thread, user))
}

func (h *httpHandler) handleDeleteMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	message, err := h.repository.GetMessage(ctx, id)
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_message", err)
		return
	}
	if message == nil {
		respondNotFound(c)
		return
	}
	deleted, err := h.repository.DeleteMessage(ctx, id)
	if err != nil {
		h.respondStoreError(c, "failed_to_delete_message", err)
		return
	}
	if !deleted {
		respondNotFound(c)
		return
	}
	h.announce(RealtimeEventMessageDeleted, *message)
	c.Status(http.StatusNoContent)
}

// handleMessageStream serves message events as server-sent events until the
// client disconnects. A heartbeat is written first and then periodically.
func (h *httpHandler) handleMessageStream(c *gin.Context) {
	user, _ := currentUser(c)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, user.ID)
	defer cleanup()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream; charset=utf-8")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := writeRealtimeEvent(c.Writer, RealtimeMessage{EventType: realtimeEventHeartbeat, Timestamp: time.Now().UTC()}); err != nil {
		h.logger.Debug("message stream closed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		var event RealtimeMessage
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			event = message
		case now := <-ticker.C:
			event = RealtimeMessage{EventType: realtimeEventHeartbeat, Timestamp: now.UTC()}
		}
		if err := writeRealtimeEvent(c.Writer, event); err != nil {
			h.logger.Debug("message stream closed", zap.String("user_id", user.ID), zap.Error(err))
			return
		}
		c.Writer.Flush()
	}
}

func writeRealtimeEvent(w io.Writer, message RealtimeMessage) error {
	payload, err := json.Marshal(realtimeEventPayload{
		Type:      message.EventType,
		MessageID: message.MessageID,
		ThreadID:  message.ThreadID,
		Timestamp: message.Timestamp.UTC().Format(time.RFC3339Nano),
		Source:    realtimeSourceBackend,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", message.EventType, payload)
	return err
}

// announce publishes a message event. Board messages reach everyone; direct
// messages reach the sender and the recipient.
func (h *httpHandler) announce(eventType string, message messaging.Message) {
	event := RealtimeMessage{
		EventType: eventType,
		MessageID: message.ID,
		ThreadID:  message.ThreadID,
		Timestamp: time.Now().UTC(),
	}
	if message.RecipientID == "" {
		h.realtime.Publish(event)
		return
	}
	event.UserID = message.RecipientID
	h.realtime.Publish(event)
	if message.SenderID != "" && message.SenderID != message.RecipientID {
		event.UserID = message.SenderID
		h.realtime.Publish(event)
	}
}

func bindMessageInput(c *gin.Context) (messaging.MessageInput, bool) {
	var input messaging.MessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondInvalid(c, err)
		return messaging.MessageInput{}, false
	}
	if err := collections.Validate(input); err != nil {
		respondInvalid(c, err)
		return messaging.MessageInput{}, false
	}
	return input, true
}
