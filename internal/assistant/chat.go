package assistant

import (
	"context"
	"errors"
	"fmt"

	"edupulse/internal/aiclient"
	"edupulse/internal/insights"
	"edupulse/internal/roster"
	"edupulse/internal/validation"
)

var (
	// ErrNoMessages is returned for a chat request without messages.
	ErrNoMessages = errors.New("messages array is required")
	// ErrSystemRole is returned when a client tries to send its own system message.
	ErrSystemRole = errors.New("messages must have role user or assistant")
)

// ChatInput is a conversation so far, oldest message first.
type ChatInput struct {
	Messages []aiclient.Message `json:"messages" validate:"required,min=1,dive"`
}

const systemPrompt = `You are an AI assistant for EduPulse, a school attendance management system.
Your role is to help teachers understand their student data, attendance patterns, and provide educational guidance.

CONTEXT:
%s

Be helpful, concise, and provide actionable insights. When discussing students, use their data to give specific recommendations.`

// Chat answers the last message of a conversation with the teacher's roster as context.
func (s *Service) Chat(ctx context.Context, ownerID string, in ChatInput) (string, error) {
	if len(in.Messages) == 0 {
		return "", ErrNoMessages
	}
	if err := validation.Struct(in); err != nil {
		return "", err
	}
	for _, m := range in.Messages {
		if m.Role == "system" {
			return "", ErrSystemRole
		}
	}
	students, err := s.students.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return "", err
	}

	msgs := make([]aiclient.Message, 0, len(in.Messages)+1)
	msgs = append(msgs, aiclient.Message{Role: "system", Content: fmt.Sprintf(systemPrompt, ContextLine(len(students), insights.AverageAttendance(students)))})
	msgs = append(msgs, in.Messages...)
	return s.llm.ChatComplete(ctx, aiclient.PurposeChat, msgs, "")
}

// ContextLine summarises the roster for the system prompt.
func ContextLine(students, average int) string {
	return fmt.Sprintf("Teacher has %d students. Average attendance: %d%%.", students, average)
}
