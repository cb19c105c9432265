package llm

import (
	_ "embed"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

var (
	//go:embed prompts/mood_system.txt
	moodSystemPrompt string
	//go:embed prompts/reason.txt
	reasonTemplate string
	//go:embed prompts/counselor_system.txt
	counselorSystemPrompt string
	//go:embed prompts/counselor_example_user.txt
	counselorExampleUser string
	//go:embed prompts/counselor_example_reply.txt
	counselorExampleReply string
)

// Message is one provider-neutral chat turn.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MoodPrompt returns the classification conversation for text.
func MoodPrompt(text string) []Message {
	return []Message{
		{Role: RoleSystem, Content: strings.TrimSpace(moodSystemPrompt)},
		{Role: RoleUser, Content: text},
	}
}

// ReasonPrompt returns the personalisation conversation for input.
func ReasonPrompt(input PersonalizeInput) []Message {
	lines := make([]string, 0, len(input.Foods))
	for _, f := range input.Foods {
		lines = append(lines, fmt.Sprintf("- %s: %s", f.Name, f.Description))
	}
	system := strings.NewReplacer(
		"{{INPUT}}", input.Text,
		"{{MOOD}}", input.Mood,
		"{{FOODS}}", strings.Join(lines, "\n"),
	).Replace(strings.TrimSpace(reasonTemplate))
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: input.Text},
	}
}

// CounselorPrompt returns the few-shot counselling conversation ending with message.
func CounselorPrompt(message string) []Message {
	return []Message{
		{Role: RoleSystem, Content: strings.TrimSpace(counselorSystemPrompt)},
		{Role: RoleUser, Content: strings.TrimSpace(counselorExampleUser)},
		{Role: RoleAssistant, Content: strings.TrimSpace(counselorExampleReply)},
		{Role: RoleUser, Content: message},
	}
}

// NormalizeMood lowercases and trims a classifier answer, dropping trailing
// punctuation some models add.
func NormalizeMood(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimRight(s, ".!,;: \n")
}

type reasonsPayload struct {
	Reasons []string `json:"reasons"`
}

// ParseReasons extracts the reasons array from a model answer. Markdown
// fences around the JSON are tolerated.
func ParseReasons(raw string) ([]string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, ErrEmptyResponse
	}
	if start := strings.Index(body, "{"); start >= 0 {
		if end := strings.LastIndex(body, "}"); end > start {
			body = body[start : end+1]
		}
	}
	var payload reasonsPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if payload.Reasons == nil {
		return nil, fmt.Errorf("%w: missing reasons", ErrInvalidResponse)
	}
	return payload.Reasons, nil
}
