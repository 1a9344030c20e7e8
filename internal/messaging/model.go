package messaging

import (
	"strings"
	"time"
)

// Priority values accepted on messages.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Message is a board post or direct message. A root message is its own
// thread (ThreadID == ID); replies inherit the thread of their parent.
type Message struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ThreadID    int64     `gorm:"column:thread_id;not null;default:0;index" json:"threadId"`
	ParentID    *int64    `gorm:"column:parent_id;index" json:"parentId"`
	SenderID    string    `gorm:"column:sender_id;size:190;not null" json:"senderId"`
	SenderName  string    `gorm:"column:sender_name;size:320" json:"sender"`
	RecipientID string    `gorm:"column:recipient_id;size:190;index" json:"recipientId,omitempty"`
	Subject     string    `gorm:"column:subject;size:512" json:"subject,omitempty"`
	Content     string    `gorm:"column:content;type:text;not null" json:"content"`
	Priority    string    `gorm:"column:priority;size:10;not null;default:'normal'" json:"priority"`
	ReplyCount  int       `gorm:"column:reply_count;not null;default:0" json:"replyCount"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// IsRoot reports whether the message starts a thread.
func (m Message) IsRoot() bool {
	return m.ParentID == nil
}

// MessageInput is the payload for posting a message or a reply.
type MessageInput struct {
	Content     string `json:"content" validate:"required,max=10000"`
	Subject     string `json:"subject" validate:"max=512"`
	RecipientID string `json:"recipientId" validate:"max=190"`
	Priority    string `json:"priority" validate:"omitempty,oneof=normal high urgent"`
}

// Record converts the input into an unsaved message from the given sender.
func (in MessageInput) Record(senderID, senderName string) Message {
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = PriorityNormal
	}
	return Message{
		SenderID:    senderID,
		SenderName:  senderName,
		RecipientID: strings.TrimSpace(in.RecipientID),
		Subject:     strings.TrimSpace(in.Subject),
		Content:     in.Content,
		Priority:    priority,
	}
}

// PrepareReply links a reply to its parent's thread.
func PrepareReply(reply Message, parent Message) Message {
	parentID := parent.ID
	reply.ParentID = &parentID
	reply.ThreadID = parent.ThreadID
	if reply.ThreadID == 0 {
		reply.ThreadID = parent.ID
	}
	if reply.Subject == "" && parent.Subject != "" {
		reply.Subject = "Re: " + strings.TrimPrefix(parent.Subject, "Re: ")
	}
	return reply
}
