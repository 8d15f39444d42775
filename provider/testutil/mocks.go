package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/rustyorb/auto-chat/model"
)

// MockProvider implements model.Provider for testing. Calls are recorded
// with the model that was selected at the time of the call.
type MockProvider struct {
	// Configurable responses
	GenerateFunc       func(ctx context.Context, req model.Request) (string, error)
	GenerateStreamFunc func(ctx context.Context, req model.Request) (model.ChunkStream, error)
	ListModelsFunc     func(ctx context.Context) []string

	name string

	mu           sync.Mutex
	currentModel string
	calls        []Call
}

// Call is one recorded Generate or GenerateStream invocation.
type Call struct {
	Model   string
	Request model.Request
	Stream  bool
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(name, modelName string) *MockProvider {
	mock := &MockProvider{
		name:         name,
		currentModel: modelName,
	}
	mock.GenerateFunc = mock.defaultGenerate
	mock.GenerateStreamFunc = mock.defaultGenerateStream
	mock.ListModelsFunc = mock.defaultListModels
	return mock
}

// Replies returns a GenerateFunc that hands out replies in order and repeats
// the last one once exhausted.
func Replies(replies ...string) func(ctx context.Context, req model.Request) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, req model.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(replies) == 0 {
			return "", nil
		}
		reply := replies[min(i, len(replies)-1)]
		i++
		return reply, nil
	}
}

func (m *MockProvider) defaultGenerate(ctx context.Context, req model.Request) (string, error) {
	return "Mock response", nil
}

func (m *MockProvider) defaultGenerateStream(ctx context.Context, req model.Request) (model.ChunkStream, error) {
	reply, err := m.GenerateFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	return NewChunkStream(strings.Fields(reply)...), nil
}

func (m *MockProvider) defaultListModels(ctx context.Context) []string {
	return []string{"mock-model-1", "mock-model-2"}
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Generate(ctx context.Context, req model.Request) (string, error) {
	m.record(req, false)
	return m.GenerateFunc(ctx, req)
}

func (m *MockProvider) GenerateStream(ctx context.Context, req model.Request) (model.ChunkStream, error) {
	m.record(req, true)
	return m.GenerateStreamFunc(ctx, req)
}

func (m *MockProvider) ListModels(ctx context.Context) []string {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = model
}

func (m *MockProvider) record(req model.Request, stream bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Model: m.currentModel, Request: req, Stream: stream})
}

// Calls returns a copy of the recorded calls.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns the number of Generate and GenerateStream calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ChunkStream is an in-memory model.ChunkStream.
type ChunkStream struct {
	chunks []string
	pos    int
	err    error
	closed bool
}

// NewChunkStream yields chunks in order.
func NewChunkStream(chunks ...string) *ChunkStream {
	return &ChunkStream{chunks: chunks, pos: -1}
}

// FailingChunkStream yields chunks and then reports err.
func FailingChunkStream(err error, chunks ...string) *ChunkStream {
	return &ChunkStream{chunks: chunks, pos: -1, err: err}
}

func (s *ChunkStream) Next() bool {
	if s.closed || s.pos+1 >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *ChunkStream) Chunk() string {
	if s.pos < 0 || s.pos >= len(s.chunks) {
		return ""
	}
	return s.chunks[s.pos]
}

func (s *ChunkStream) Err() error {
	if s.pos+1 >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *ChunkStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ChunkStream) Closed() bool {
	return s.closed
}
