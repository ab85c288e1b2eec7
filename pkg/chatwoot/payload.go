// Package chatwoot models the inbound webhook payload and the outbound
// message API of the conversation platform.
package chatwoot

import (
	"fmt"
	"strings"

	"github.com/conversia-ai/conversia/pkg/config"
)

// Webhook event types handled by the ingress.
const (
	EventMessageCreated      = "message_created"
	EventConversationUpdated = "conversation_updated"
)

// MessageTypeIncoming marks user-authored messages.
const MessageTypeIncoming = "incoming"

// WebhookEvent is the inbound payload. Fields the service does not consume
// are omitted.
type WebhookEvent struct {
	Event       string        `json:"event"`
	ID          int64         `json:"id,omitempty"`
	MessageType string        `json:"message_type,omitempty"`
	Content     string        `json:"content,omitempty"`
	CompanyID   string        `json:"company_id,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
	Sender      *Sender       `json:"sender,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// Conversation is the platform conversation envelope.
type Conversation struct {
	ID               int64          `json:"id"`
	Status           string         `json:"status,omitempty"`
	Meta             Meta           `json:"meta,omitempty"`
	ContactInbox     ContactInbox   `json:"contact_inbox,omitempty"`
	CustomAttributes map[string]any `json:"custom_attributes,omitempty"`
	Account          Account        `json:"account,omitempty"`
	AccountID        int            `json:"account_id,omitempty"`
}

// Meta carries conversation metadata, including the optional tenant hint.
type Meta struct {
	CompanyID string  `json:"company_id,omitempty"`
	Sender    *Sender `json:"sender,omitempty"`
}

// ContactInbox links a conversation to a contact.
type ContactInbox struct {
	ContactID int64 `json:"contact_id,omitempty"`
}

// Account identifies the platform account.
type Account struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Sender identifies a message author.
type Sender struct {
	ID   int64  `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// Attachment is one inbound media item.
type Attachment struct {
	FileType string `json:"file_type,omitempty"` // audio | image | file
	DataURL  string `json:"data_url,omitempty"`
}

// IsIncoming reports whether the event is a user-authored message.
func (e *WebhookEvent) IsIncoming() bool {
	return e.Event == EventMessageCreated && e.MessageType == MessageTypeIncoming
}

// ContactID extracts the contact identifier in priority order: the contact
// inbox link, the conversation meta sender, then the root sender when it is
// not an agent. Zero means no contact could be determined.
func (e *WebhookEvent) ContactID() int64 {
	if e.Conversation != nil {
		if e.Conversation.ContactInbox.ContactID != 0 {
			return e.Conversation.ContactInbox.ContactID
		}
		if e.Conversation.Meta.Sender != nil && e.Conversation.Meta.Sender.ID != 0 {
			return e.Conversation.Meta.Sender.ID
		}
	}
	if e.Sender != nil && e.Sender.ID != 0 && !strings.EqualFold(e.Sender.Type, "user") {
		return e.Sender.ID
	}
	return 0
}

// ResolutionHints maps the payload's tenant candidates onto the registry's
// resolution input.
func (e *WebhookEvent) ResolutionHints() config.ResolutionHints {
	h := config.ResolutionHints{ExplicitCompanyID: e.CompanyID}
	if e.Conversation == nil {
		return h
	}
	h.MetaCompanyID = e.Conversation.Meta.CompanyID
	h.AccountName = e.Conversation.Account.Name
	if v, ok := e.Conversation.CustomAttributes["company_id"].(string); ok {
		h.CustomAttrCompanyID = v
	}
	h.AccountID = e.Conversation.Account.ID
	if h.AccountID == 0 {
		h.AccountID = e.Conversation.AccountID
	}
	return h
}

// UserID builds the composite per-tenant user identifier.
func UserID(companyID string, contactID int64) string {
	return fmt.Sprintf("%s_contact_%d", companyID, contactID)
}
