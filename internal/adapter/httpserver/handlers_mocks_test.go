package httpserver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/target/karmabot/internal/app"
	"github.com/target/karmabot/internal/domain"
	"github.com/target/karmabot/internal/platform/config"
)

// fakeService records dispatched work and signals arrival, since the
// handlers acknowledge before processing finishes.
type fakeService struct {
	mu       sync.Mutex
	messages []domain.Message
	commands []app.Command
	mentions []app.Command
	done     chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{done: make(chan struct{}, 16)}
}

func (f *fakeService) HandleMessageEvent(_ context.Context, msg domain.Message) error {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeService) HandleCommand(_ context.Context, cmd app.Command) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeService) HandleMention(_ context.Context, cmd app.Command) error {
	f.mu.Lock()
	f.mentions = append(f.mentions, cmd)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

type acceptVerifier struct{}

func (acceptVerifier) Verify(string, string, []byte) error { return nil }

type rejectVerifier struct{}

func (rejectVerifier) Verify(string, string, []byte) error {
	return errors.New("signature mismatch")
}

type serverOption func(*testServerParams)

type testServerParams struct {
	verifier     requestVerifier
	healthChecks []HealthCheck
	token        string
}

func withVerifier(v requestVerifier) serverOption {
	return func(p *testServerParams) { p.verifier = v }
}

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(p *testServerParams) { p.healthChecks = checks }
}

func withVerificationToken(token string) serverOption {
	return func(p *testServerParams) { p.token = token }
}

func newTestServer(t *testing.T, svc eventService, opts ...serverOption) *Server {
	t.Helper()

	params := testServerParams{verifier: acceptVerifier{}}
	for _, opt := range opts {
		opt(&params)
	}

	cfg := &config.Config{
		AppEnv:              "development",
		Port:                "8080",
		VerificationToken:   params.token,
		MaxConcurrentEvents: 4,
	}

	return NewServer(cfg, svc, params.verifier, params.healthChecks)
}
