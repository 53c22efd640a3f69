package bot

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sherlockbot/sherlock/internal/chat"
	"github.com/sherlockbot/sherlock/internal/history"
	"github.com/sherlockbot/sherlock/internal/model"
	"github.com/sherlockbot/sherlock/internal/retry"
)

// scriptedProvider replays a fixed sequence of outcomes, one per call.
type scriptedProvider struct {
	script []func() (model.Result, error)
	calls  int
}

func (p *scriptedProvider) Complete(_ context.Context, _ []chat.Message) (model.Result, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	return p.script[idx]()
}

func ok(content string) func() (model.Result, error) {
	return func() (model.Result, error) {
		return model.Result{Content: content, PromptTokens: 10, CompletionTokens: 5, Model: "test-model"}, nil
	}
}

func fail(err error) func() (model.Result, error) {
	return func() (model.Result, error) { return model.Result{}, err }
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Retryable: func(err error) bool {
			return errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrConnection)
		},
	}
}

func setupStore(t *testing.T) *history.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// Each new pool connection to :memory: gets its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	s := history.NewStore(db)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestOrchestrator(t *testing.T, store HistoryStore, provider model.Provider) *Orchestrator {
	t.Helper()
	return New(store, provider, &chat.StandardAssembler{}, testPolicy(), "Você é Sherlock.", 10, zap.NewNop())
}

func TestRespond_SuccessPersistsPair(t *testing.T) {
	store := setupStore(t)
	if err := store.AppendExchange(42, 7, "oi", "olá"); err != nil {
		t.Fatal(err)
	}
	provider := &scriptedProvider{script: []func() (model.Result, error){ok("4")}}
	o := newTestOrchestrator(t, store, provider)

	reply := o.Respond(context.Background(), 42, 7, "What is 2+2?")
	if reply != "4" {
		t.Fatalf("expected answer %q, got %q", "4", reply)
	}

	msgs, err := store.Recent(42, 7, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 records after exchange, got %d", len(msgs))
	}
	if msgs[2].Role != chat.RoleUser || msgs[2].Content != "What is 2+2?" {
		t.Errorf("unexpected persisted user record: %+v", msgs[2])
	}
	if msgs[3].Role != chat.RoleAssistant || msgs[3].Content != "4" {
		t.Errorf("unexpected persisted assistant record: %+v", msgs[3])
	}
}

func TestRespond_EmptyQueryShortCircuits(t *testing.T) {
	provider := &scriptedProvider{script: []func() (model.Result, error){ok("never")}}
	reads := &countingStore{inner: setupStore(t)}
	o := newTestOrchestrator(t, reads, provider)

	for _, query := range []string{"", "   ", "\n\t "} {
		reply := o.Respond(context.Background(), 1, 1, query)
		if reply != MsgAskSomething {
			t.Fatalf("query %q: expected prompt-for-input, got %q", query, reply)
		}
	}
	if provider.calls != 0 {
		t.Errorf("provider should not be called, got %d calls", provider.calls)
	}
	if reads.recentCalls != 0 {
		t.Errorf("history should not be read, got %d reads", reads.recentCalls)
	}
	if reads.appendCalls != 0 {
		t.Errorf("history should not be written, got %d writes", reads.appendCalls)
	}
}

func TestRespond_TransientFailuresThenSuccess(t *testing.T) {
	store := setupStore(t)
	provider := &scriptedProvider{script: []func() (model.Result, error){
		fail(model.ErrConnection),
		fail(model.ErrConnection),
		ok("terceira vez é a boa"),
	}}
	o := newTestOrchestrator(t, store, provider)

	reply := o.Respond(context.Background(), 1, 1, "oi")
	if reply != "terceira vez é a boa" {
		t.Fatalf("expected success after retries, got %q", reply)
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", provider.calls)
	}
}

func TestRespond_FailureMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", model.ErrRateLimited, MsgRemoteRateLimited},
		{"connection", model.ErrConnection, MsgConnectionError},
		{"timeout", model.ErrTimeout, MsgTimeout},
		{"empty response", model.ErrEmptyResponse, MsgEmptyResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := setupStore(t)
			provider := &scriptedProvider{script: []func() (model.Result, error){fail(tc.err)}}
			o := newTestOrchestrator(t, store, provider)

			reply := o.Respond(context.Background(), 1, 1, "oi")
			if reply != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, reply)
			}

			msgs, err := store.Recent(1, 1, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 0 {
				t.Errorf("failed exchange must not be persisted, got %d records", len(msgs))
			}
		})
	}
}

func TestRespond_RateLimitSurvivesRetriesUnmasked(t *testing.T) {
	store := setupStore(t)
	provider := &scriptedProvider{script: []func() (model.Result, error){
		fail(model.ErrRateLimited),
		fail(model.ErrRateLimited),
		fail(model.ErrRateLimited),
	}}
	o := newTestOrchestrator(t, store, provider)

	reply := o.Respond(context.Background(), 1, 1, "oi")
	if reply != MsgRemoteRateLimited {
		t.Fatalf("expected rate-limit message after exhaustion, got %q", reply)
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", provider.calls)
	}
}

func TestRespond_UnexpectedErrorIsGeneric(t *testing.T) {
	store := setupStore(t)
	provider := &scriptedProvider{script: []func() (model.Result, error){
		fail(errors.New("status=500 body=boom")),
	}}
	o := newTestOrchestrator(t, store, provider)

	reply := o.Respond(context.Background(), 1, 1, "oi")
	if !strings.HasPrefix(reply, "❌ Erro ao processar:") {
		t.Fatalf("expected generic processing message, got %q", reply)
	}
	if !strings.Contains(reply, "status=500") {
		t.Errorf("generic message should carry the failure description, got %q", reply)
	}
	if provider.calls != 1 {
		t.Errorf("unexpected errors must not be retried, got %d attempts", provider.calls)
	}
}

func TestRespond_EmptyContentGetsFallback(t *testing.T) {
	store := setupStore(t)
	provider := &scriptedProvider{script: []func() (model.Result, error){ok("")}}
	o := newTestOrchestrator(t, store, provider)

	reply := o.Respond(context.Background(), 1, 1, "oi")
	if reply != MsgNoAnswer {
		t.Fatalf("expected fallback phrase, got %q", reply)
	}

	// The fallback is what gets persisted as the assistant record.
	msgs, err := store.Recent(1, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].Content != MsgNoAnswer {
		t.Fatalf("expected persisted fallback answer, got %+v", msgs)
	}
}

func TestRespond_PersistFailureDoesNotFailAnswer(t *testing.T) {
	store := &countingStore{inner: setupStore(t), appendErr: errors.New("disk full")}
	provider := &scriptedProvider{script: []func() (model.Result, error){ok("resposta")}}
	o := newTestOrchestrator(t, store, provider)

	reply := o.Respond(context.Background(), 1, 1, "oi")
	if reply != "resposta" {
		t.Fatalf("answer must survive a persistence failure, got %q", reply)
	}
}

func TestRespond_HistoryReadFailureIsFatal(t *testing.T) {
	store := &countingStore{inner: setupStore(t), recentErr: errors.New("db locked")}
	provider := &scriptedProvider{script: []func() (model.Result, error){ok("never")}}
	o := newTestOrchestrator(t, store, provider)

	reply := o.Respond(context.Background(), 1, 1, "oi")
	if !strings.HasPrefix(reply, "❌ Erro ao processar:") {
		t.Fatalf("expected generic processing message, got %q", reply)
	}
	if provider.calls != 0 {
		t.Errorf("provider must not be called when history read fails, got %d", provider.calls)
	}
}

func TestRespond_ContextOrdering(t *testing.T) {
	store := setupStore(t)
	if err := store.AppendExchange(42, 7, "primeira", "resposta um"); err != nil {
		t.Fatal(err)
	}

	var seen []chat.Message
	provider := &capturingProvider{reply: "4"}
	o := New(store, provider, &chat.StandardAssembler{}, testPolicy(), "system aqui", 10, zap.NewNop())

	if reply := o.Respond(context.Background(), 42, 7, "What is 2+2?"); reply != "4" {
		t.Fatalf("unexpected reply %q", reply)
	}
	seen = provider.seen

	want := []chat.Message{
		{Role: chat.RoleSystem, Content: "system aqui"},
		{Role: chat.RoleUser, Content: "primeira"},
		{Role: chat.RoleAssistant, Content: "resposta um"},
		{Role: chat.RoleUser, Content: "What is 2+2?"},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], seen[i])
		}
	}
}

// capturingProvider records the assembled messages it is called with.
type capturingProvider struct {
	reply string
	seen  []chat.Message
}

func (p *capturingProvider) Complete(_ context.Context, messages []chat.Message) (model.Result, error) {
	p.seen = messages
	return model.Result{Content: p.reply}, nil
}

// countingStore wraps a real store to count calls and inject failures.
type countingStore struct {
	inner       *history.Store
	recentErr   error
	appendErr   error
	recentCalls int
	appendCalls int
}

func (s *countingStore) RecentChat(userID, channelID int64, limit int) ([]chat.Message, error) {
	s.recentCalls++
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.inner.RecentChat(userID, channelID, limit)
}

func (s *countingStore) AppendExchange(userID, channelID int64, question, answer string) error {
	s.appendCalls++
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.inner.AppendExchange(userID, channelID, question, answer)
}
