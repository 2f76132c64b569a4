package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient is a scripted Client for tests and local runs without an API
// key. Responses are matched by substring against the system and user
// prompts, in registration order; unmatched prompts fall back to Default.
// Every call is counted so tests can assert cache behavior.
type MockClient struct {
	mu      sync.Mutex
	rules   []mockRule
	Default string
	Err     error
	calls   int
}

type mockRule struct {
	systemContains string
	userContains   string
	response       string
}

// NewMockClient creates a mock with an empty script.
func NewMockClient() *MockClient {
	return &MockClient{Default: "ok"}
}

// Respond registers a scripted response for user prompts containing the
// given substring. Returns the client for chaining.
func (m *MockClient) Respond(contains, response string) *MockClient {
	return m.RespondTo("", contains, response)
}

// RespondTo registers a scripted response matched against both prompts:
// the system prompt must contain systemContains and the user prompt must
// contain userContains. Empty substrings match anything, so a rule with
// only a system fragment scripts a whole pipeline stage.
func (m *MockClient) RespondTo(systemContains, userContains, response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		systemContains: systemContains,
		userContains:   userContains,
		response:       response,
	})
	return m
}

// Fail makes every subsequent call return err.
func (m *MockClient) Fail(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
	return m
}

// Calls returns how many completions have been requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Complete returns the scripted response for the prompt.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem returns the first scripted response whose rule matches
// the prompts.
func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.Err != nil {
		return "", m.Err
	}
	for _, r := range m.rules {
		if strings.Contains(systemPrompt, r.systemContains) &&
			strings.Contains(userPrompt, r.userContains) {
			return r.response, nil
		}
	}
	if m.Default == "" {
		return "", fmt.Errorf("mock: no scripted response for prompt %q", userPrompt)
	}
	return m.Default, nil
}
