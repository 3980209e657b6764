package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/response"
	"github.com/weiwangfds/racenotes/internal/service/cache"
	"github.com/weiwangfds/racenotes/internal/service/note"
)

// SyncHandler 同步状态与outbox处理器
// outbox 不会自动回放, 由调用方在补录笔记后逐条标记为已同步
type SyncHandler struct {
	notes note.NoteService
}

// NewSyncHandler 创建同步处理器实例
func NewSyncHandler(notes note.NoteService) *SyncHandler {
	return &SyncHandler{notes: notes}
}

// Status GET /sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	response.Success(c, h.notes.SyncStatus())
}

// ListOutbox GET /outbox?status=pending
func (h *SyncHandler) ListOutbox(c *gin.Context) {
	entries := h.notes.OutboxEntries()
	if status := c.Query("status"); status != "" {
		filtered := make([]cache.OutboxEntry, 0, len(entries))
		for _, e := range entries {
			if string(e.SyncStatus) == status {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	response.List(c, entries, len(entries), 0, 0)
}

// MarkSynced POST /outbox/:id/synced
func (h *SyncHandler) MarkSynced(c *gin.Context) {
	id := c.Param("id")
	if err := h.notes.MarkNoteSynced(id); err != nil {
		response.FromError(c, err)
		return
	}
	logger.Infof("[HTTP] outbox 条目已标记为同步: %s", id)
	response.SuccessWithMessage(c, "outbox entry marked as synced", gin.H{"id": id})
}

// ClearSynced DELETE /outbox/synced
func (h *SyncHandler) ClearSynced(c *gin.Context) {
	removed := h.notes.ClearSyncedNotes()
	response.SuccessWithMessage(c, "synced outbox entries cleared", gin.H{"removed": removed})
}

// Health GET /health
func (h *SyncHandler) Health(c *gin.Context) {
	status := h.notes.SyncStatus()
	response.Success(c, gin.H{
		"status":        "ok",
		"connected":     status.Connected,
		"pending_count": status.PendingCount,
	})
}
