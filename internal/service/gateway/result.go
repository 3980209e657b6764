package gateway

import (
	"strings"

	"github.com/weiwangfds/racenotes/internal/database"
)

// Step 笔记写入流程中尽力而为的步骤
type Step string

const (
	StepAttachTags  Step = "attach_tags"
	StepAttachMedia Step = "attach_media"
	StepRefetchView Step = "refetch_view"
)

// StepFailure 单个步骤的失败信息
type StepFailure struct {
	Step    Step   `json:"step"`
	Message string `json:"message"`
}

// NoteCreateResult 笔记写入结果
// 笔记本身已经提交; FailedSteps 非空时表示标签、附件或视图读取未完整完成
type NoteCreateResult struct {
	NoteID      string             `json:"note_id"`
	SessionID   string             `json:"session_id"`
	View        *database.NoteView `json:"note"`
	Fallback    bool               `json:"fallback"`
	FailedSteps []StepFailure      `json:"failed_steps,omitempty"`
}

// Partial 是否存在失败的附加步骤
func (r *NoteCreateResult) Partial() bool {
	return len(r.FailedSteps) > 0
}

// Failed 指定步骤是否失败
func (r *NoteCreateResult) Failed(step Step) bool {
	for _, f := range r.FailedSteps {
		if f.Step == step {
			return true
		}
	}
	return false
}

// Summary 面向用户的失败摘要, 例如 "attach_tags: no such table: note_tag"
func (r *NoteCreateResult) Summary() string {
	parts := make([]string, 0, len(r.FailedSteps))
	for _, f := range r.FailedSteps {
		parts = append(parts, string(f.Step)+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

func (r *NoteCreateResult) fail(step Step, err error) {
	r.FailedSteps = append(r.FailedSteps, StepFailure{Step: step, Message: err.Error()})
}
