package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conversia-ai/conversia/pkg/chatwoot"
	"github.com/conversia-ai/conversia/pkg/metrics"
	"github.com/conversia-ai/conversia/pkg/models"
)

// Webhook acknowledgement statuses.
const (
	statusProcessed     = "processed"
	statusIgnored       = "ignored"
	statusDuplicate     = "duplicate"
	statusBotInactive   = "bot_inactive"
	statusStatusUpdated = "status_updated"
)

// handleWebhook is the platform ingress. Every accepted request produces a
// reply or a structured ignore/duplicate acknowledgement.
func (s *Server) handleWebhook(c *gin.Context) {
	var event chatwoot.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if event.Event != chatwoot.EventMessageCreated && event.Event != chatwoot.EventConversationUpdated {
		c.JSON(http.StatusOK, gin.H{"status": statusIgnored, "reason": "unhandled event"})
		return
	}
	if event.Conversation == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing conversation"})
		return
	}

	companyID := s.cfg.TenantRegistry.Resolve(event.ResolutionHints())
	tenant, ok := s.cfg.TenantRegistry.Get(companyID)
	if !ok {
		metrics.WebhookEvents.WithLabelValues(companyID, "unknown_tenant").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown company: " + companyID})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Server.RequestDeadline)
	defer cancel()

	if event.Event == chatwoot.EventConversationUpdated {
		s.handleConversationUpdated(ctx, c, companyID, &event)
		return
	}
	s.handleMessageCreated(ctx, c, companyID, tenant.DisplayName, &event)
}

func (s *Server) handleConversationUpdated(ctx context.Context, c *gin.Context, companyID string, event *chatwoot.WebhookEvent) {
	if s.guard != nil {
		if err := s.guard.SetBotStatus(ctx, companyID, event.Conversation.ID, event.Conversation.Status); err != nil {
			slog.Warn("Failed to store bot status",
				"company_id", companyID, "conversation_id", event.Conversation.ID, "error", err)
		}
	}
	metrics.WebhookEvents.WithLabelValues(companyID, statusStatusUpdated).Inc()
	c.JSON(http.StatusOK, gin.H{"status": statusStatusUpdated})
}

func (s *Server) handleMessageCreated(ctx context.Context, c *gin.Context, companyID, displayName string, event *chatwoot.WebhookEvent) {
	started := time.Now()

	if !event.IsIncoming() {
		c.JSON(http.StatusOK, gin.H{"status": statusIgnored, "reason": "not an incoming message"})
		return
	}

	conversationID := event.Conversation.ID
	if s.guard != nil {
		active, err := s.guard.BotActive(ctx, companyID, conversationID)
		if err != nil {
			slog.Warn("Bot status check failed, assuming active",
				"company_id", companyID, "conversation_id", conversationID, "error", err)
		} else if !active {
			metrics.WebhookEvents.WithLabelValues(companyID, statusBotInactive).Inc()
			c.JSON(http.StatusOK, gin.H{"status": statusBotInactive})
			return
		}

		first, err := s.guard.MarkProcessed(ctx, companyID, conversationID, event.ID)
		if err != nil {
			slog.Warn("Idempotency check failed, processing anyway",
				"company_id", companyID, "conversation_id", conversationID, "error", err)
		} else if !first {
			metrics.WebhookEvents.WithLabelValues(companyID, statusDuplicate).Inc()
			c.JSON(http.StatusOK, gin.H{"status": statusDuplicate})
			return
		}
	}

	contactID := event.ContactID()
	if contactID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no contact in payload"})
		return
	}
	userID := chatwoot.UserID(companyID, contactID)

	mediaContext := s.enrichAttachments(ctx, event.Attachments)
	question := strings.TrimSpace(event.Content)
	if question == "" && mediaContext != "" {
		// Voice notes and images arrive without text content.
		question = mediaContext
	}

	history, err := s.memory.Get(ctx, companyID, userID)
	if err != nil {
		slog.Warn("Memory read failed, starting empty",
			"company_id", companyID, "user_id", userID, "error", err)
		history = nil
	}

	state := models.NewOrchestratorState(question, userID, companyID, history, mediaContext)
	state = s.orchestrator.Run(ctx, state)
	reply := state.AgentResponse

	if err := s.memory.Append(ctx, companyID, userID, models.RoleUser, question); err != nil {
		slog.Warn("Failed to append user message", "user_id", userID, "error", err)
	}
	if err := s.memory.Append(ctx, companyID, userID, models.RoleAssistant, reply); err != nil {
		slog.Warn("Failed to append assistant message", "user_id", userID, "error", err)
	}

	if s.platform != nil {
		accountID := event.Conversation.Account.ID
		if accountID == 0 {
			accountID = event.Conversation.AccountID
		}
		if err := s.platform.SendMessage(ctx, accountID, conversationID, reply); err != nil {
			slog.Error("Failed to send reply",
				"company_id", companyID, "conversation_id", conversationID, "error", err)
			metrics.WebhookEvents.WithLabelValues(companyID, "send_failed").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deliver reply"})
			return
		}
	}

	metrics.WebhookEvents.WithLabelValues(companyID, statusProcessed).Inc()
	metrics.RequestDuration.WithLabelValues(companyID).Observe(time.Since(started).Seconds())
	c.JSON(http.StatusOK, gin.H{
		"status":   statusProcessed,
		"company":  displayName,
		"response": reply,
	})
}

// enrichAttachments transcribes audio and describes images, combining the
// results into the request's media context.
func (s *Server) enrichAttachments(ctx context.Context, attachments []chatwoot.Attachment) string {
	if s.media == nil || len(attachments) == 0 {
		return ""
	}
	var parts []string
	for _, a := range attachments {
		switch a.FileType {
		case "audio":
			text, err := s.transcribeAudio(ctx, a.DataURL)
			if err != nil {
				slog.Warn("Audio transcription failed", "error", err)
				continue
			}
			parts = append(parts, "Transcripción de audio: "+text)
		case "image":
			desc, err := s.media.DescribeImage(ctx, a.DataURL)
			if err != nil {
				slog.Warn("Image description failed", "error", err)
				continue
			}
			parts = append(parts, "Descripción de imagen: "+desc)
		}
	}
	return strings.Join(parts, "\n")
}

// transcribeAudio downloads the attachment to a temporary file for the
// transcription API, which requires a file path.
func (s *Server) transcribeAudio(ctx context.Context, dataURL string) (string, error) {
	if s.platform == nil {
		return "", fmt.Errorf("no platform client for attachment download")
	}
	data, err := s.platform.DownloadAttachment(ctx, dataURL)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "conversia-audio-*.ogg")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	f.Close()

	return s.media.Transcribe(ctx, f.Name())
}
