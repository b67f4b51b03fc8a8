package research

import (
	"context"
	"sync"

	"github.com/jonathan/research-agent/internal/llm"
)

type generatorCall struct {
	prompt string
	tier   llm.ModelTier
}

// fakeGenerator returns scripted replies in order and records every call.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []generatorCall
}

func (f *fakeGenerator) GenerateContent(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, generatorCall{prompt: prompt, tier: tier})
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
