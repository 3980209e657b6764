package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/racenotes/internal/database"
	"github.com/weiwangfds/racenotes/internal/response"
	"github.com/weiwangfds/racenotes/internal/service/note"
)

// TagHandler 标签处理器
type TagHandler struct {
	notes note.NoteService
}

// CreateTagRequest 创建标签请求
type CreateTagRequest struct {
	Label string `json:"label"`
}

// NewTagHandler 创建标签处理器实例
func NewTagHandler(notes note.NoteService) *TagHandler {
	return &TagHandler{notes: notes}
}

// ListTags 读取标签, search参数按标签文本做不区分大小写的过滤
// GET /tags?search=
func (h *TagHandler) ListTags(c *gin.Context) {
	tags := h.notes.LoadMetadata().Tags
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		matched := make([]database.Tag, 0, len(tags))
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(tag.Label), search) {
				matched = append(matched, tag)
			}
		}
		tags = matched
	}
	response.List(c, tags, len(tags), 0, 0)
}

// CreateTag 幂等创建标签, 已存在同名标签时返回已有记录
// POST /tags
func (h *TagHandler) CreateTag(c *gin.Context) {
	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tag, err := h.notes.CreateTag(req.Label)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "tag saved", tag)
}
