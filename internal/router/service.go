package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/session"
	"github.com/sirupsen/logrus"
)

// Chat response status values
const (
	StatusSuccess = "Success"
	StatusError   = "Error"
)

// ChatRequest is one user turn
type ChatRequest struct {
	SessionID   string
	Query       string
	PatientData interface{}
}

// ChatResponse is the body returned for a completed graph run
type ChatResponse struct {
	Report       string               `json:"report"`
	HistoryState domain.ReportHistory `json:"history_state"`
	Status       string               `json:"status"`
	ErrorMessage string               `json:"error_message"`
}

// NewChatResponse summarizes a final state
func NewChatResponse(state domain.SessionState) ChatResponse {
	status := StatusSuccess
	if state.Error != "" {
		status = StatusError
	}
	return ChatResponse{
		Report:       state.FinalReport,
		HistoryState: state.ReportHistory,
		Status:       status,
		ErrorMessage: state.Error,
	}
}

// Service runs chat turns against persisted session history
type Service struct {
	graph *Graph
	store session.Store
	locks *keyedMutex
	log   *logrus.Logger
}

// NewService creates a chat service
func NewService(graph *Graph, store session.Store, logger *logrus.Logger) *Service {
	return &Service{
		graph: graph,
		store: store,
		locks: newKeyedMutex(),
		log:   logger,
	}
}

// Chat runs one turn. Turns for the same session are serialized within this
// process; the final state is saved before returning.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (domain.SessionState, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("waiting for session %s: %w", sessionID, err)
	}
	defer unlock()

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}

	state := domain.NewSessionState(sessionID, req.Query, req.PatientData, history)
	final, err := s.graph.Run(ctx, state)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("running graph: %w", err)
	}

	if err := s.save(ctx, final); err != nil {
		return domain.SessionState{}, err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"data_type":  final.DataType,
		"failed":     final.Error != "",
	}).Info("Chat turn completed")

	return final, nil
}

// AnalyzeVariant runs extraction, scoring and synthesis for a standalone
// query. No session history is read or written.
func (s *Service) AnalyzeVariant(ctx context.Context, query string) (domain.SessionState, error) {
	state := domain.NewSessionState("", query, nil, domain.ReportHistory{})
	return s.graph.RunFrom(ctx, NodeExtractVariant, state)
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) (domain.ReportHistory, error) {
	checkpoint, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ReportHistory{}, nil
	}
	if err != nil {
		return domain.ReportHistory{}, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return checkpoint.History(), nil
}

func (s *Service) save(ctx context.Context, state domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	checkpoint := &domain.Checkpoint{SessionID: state.SessionID, State: data}
	if err := s.store.Save(ctx, checkpoint); err != nil {
		return fmt.Errorf("saving session %s: %w", state.SessionID, err)
	}
	return nil
}

// keyedMutex hands out one lock per key and drops it when unused. Waiters
// give up when their context ends.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is held while its one-slot channel is full
type keyLock struct {
	slot chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{slot: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
		return func() {
			<-l.slot
			k.release(key, l)
		}, nil
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) release(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
