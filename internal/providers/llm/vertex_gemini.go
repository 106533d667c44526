package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// Complete maps system messages to the system instruction and replays the
// rest as chat history; Gemini names the assistant role "model".
func (v *VertexGemini) Complete(ctx context.Context, messages []Message) (string, error) {
	system, history, last := splitForGemini(messages)
	if last == "" {
		return "", ErrEmptyReply
	}

	// a fresh model handle per call, SystemInstruction is per conversation
	m := v.client.GenerativeModel(v.modelName)
	if system != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(system)}}
	}

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, vertexgenai.Text(last))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func splitForGemini(messages []Message) (system string, history []*vertexgenai.Content, last string) {
	var sys []string
	var turns []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	system = strings.Join(sys, "\n\n")

	if n := len(turns); n > 0 && turns[n-1].Role == RoleUser {
		last = turns[n-1].Content
		turns = turns[:n-1]
	}
	for _, t := range turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &vertexgenai.Content{
			Role:  role,
			Parts: []vertexgenai.Part{vertexgenai.Text(t.Content)},
		})
	}
	return system, history, last
}
