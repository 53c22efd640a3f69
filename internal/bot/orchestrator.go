package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sherlockbot/sherlock/internal/chat"
	"github.com/sherlockbot/sherlock/internal/model"
	"github.com/sherlockbot/sherlock/internal/retry"
)

// HistoryStore is the slice of the history store the orchestrator needs.
type HistoryStore interface {
	RecentChat(userID, channelID int64, limit int) ([]chat.Message, error)
	AppendExchange(userID, channelID int64, question, answer string) error
}

// Orchestrator runs one user request through the full pipeline: context
// assembly, retried completion call, and persist-after-success.
type Orchestrator struct {
	store      HistoryStore
	provider   model.Provider
	assembler  chat.Assembler
	policy     retry.Policy
	system     string
	maxContext int
	log        *zap.Logger
}

// New creates an Orchestrator. systemPrompt is the already-loaded process-wide
// prompt; maxContext bounds how much history goes into each call.
func New(
	store HistoryStore,
	provider model.Provider,
	assembler chat.Assembler,
	policy retry.Policy,
	systemPrompt string,
	maxContext int,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		provider:   provider,
		assembler:  assembler,
		policy:     policy,
		system:     systemPrompt,
		maxContext: maxContext,
		log:        log,
	}
}

// Respond answers one user query. It always returns a user-facing string:
// every failure kind maps to a fixed message and nothing escapes as an error
// or panic. History gains the user/assistant pair only after the completion
// succeeds; a persistence failure at that point is logged but does not take
// the answer away from the user.
func (o *Orchestrator) Respond(ctx context.Context, userID, channelID int64, query string) (reply string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return MsgAskSomething
	}

	requestID := uuid.NewString()
	log := o.log.With(
		zap.String("request_id", requestID),
		zap.Int64("user_id", userID),
		zap.Int64("channel_id", channelID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing request", zap.Any("panic", r))
			reply = MsgProcessingError(fmt.Sprint(r))
		}
	}()

	history, err := o.store.RecentChat(userID, channelID, o.maxContext)
	if err != nil {
		log.Error("failed to read history", zap.Error(err))
		return MsgProcessingError(err.Error())
	}

	messages := o.assembler.Assemble(o.system, history, query)

	var result model.Result
	err = o.policy.Do(ctx, func() error {
		r, callErr := o.provider.Complete(ctx, messages)
		if callErr != nil {
			return callErr
		}
		result = r
		return nil
	})
	if err != nil {
		log.Warn("completion failed", zap.Error(err))
		switch {
		case errors.Is(err, model.ErrRateLimited):
			return MsgRemoteRateLimited
		case errors.Is(err, model.ErrConnection):
			return MsgConnectionError
		case errors.Is(err, model.ErrTimeout):
			return MsgTimeout
		case errors.Is(err, model.ErrEmptyResponse):
			return MsgEmptyResponse
		default:
			return MsgProcessingError(err.Error())
		}
	}

	answer := result.Content
	if strings.TrimSpace(answer) == "" {
		answer = MsgNoAnswer
	}

	// Durability is best-effort once the expensive remote call has succeeded.
	if err := o.store.AppendExchange(userID, channelID, query, answer); err != nil {
		log.Error("failed to persist exchange", zap.Error(err))
	}

	if result.TotalTokens() > 0 {
		log.Debug("tokens consumed",
			zap.Int("prompt_tokens", result.PromptTokens),
			zap.Int("completion_tokens", result.CompletionTokens),
			zap.Int("total_tokens", result.TotalTokens()),
			zap.String("model", result.Model),
		)
	}
	return answer
}
