package ai

import "context"

// MockProvider is a test double for completion providers. Responses and Errs
// are consumed one per call so tests can script a failure followed by a
// success; when the script runs out the last entry repeats.
type MockProvider struct {
	Responses   []string
	Errs        []error
	Calls       int
	LastRequest *CompletionRequest // captures the last request for inspection
}

// NewMockProvider creates a MockProvider that always returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Responses: []string{response}}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.LastRequest = &req
	i := m.Calls
	m.Calls++

	if err := pick(m.Errs, i); err != nil {
		return CompletionResponse{}, err
	}

	content := pick(m.Responses, i)
	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return pick(m.Errs, m.Calls)
}

// pick returns s[i], clamping to the last element; zero value when empty.
func pick[T any](s []T, i int) T {
	var zero T
	if len(s) == 0 {
		return zero
	}
	if i >= len(s) {
		i = len(s) - 1
	}
	return s[i]
}
