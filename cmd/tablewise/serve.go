package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tablewise/internal/assistant"
	"tablewise/internal/config"
	"tablewise/internal/convo"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. POST /v1/turn accepts a JSON body:

  {
    "conversation_id": "...",
    "prompt": "how did sales do last week?",
    "history": [{"role": "user", "content": "..."}, ...],
    "last_turn_was_clarification": false
  }

and responds with the assistant's content, the corrected prompt, the query
status and the pending clarification question, if any.`,
	RunE: runServe,
}

type turnRequest struct {
	ConversationID           string          `json:"conversation_id"`
	Prompt                   string          `json:"prompt"`
	History                  []convo.Message `json:"history"`
	LastTurnWasClarification bool            `json:"last_turn_was_clarification"`
}

// server carries per-conversation turn state across HTTP requests so the
// unanswered-clarification flip works without the caller resending turns.
type server struct {
	app    *app
	logger *zap.Logger

	mu        sync.Mutex
	lastTurns map[string]*convo.Turn
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	srv := &server{
		app:       a,
		logger:    logger,
		lastTurns: make(map[string]*convo.Turn),
	}

	ctx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if watcher, werr := config.NewWatcher(configPath, logger, func(fresh *config.Config) {
		setLogLevel(fresh.Logging.Level)
	}); werr != nil {
		logger.Warn("config watcher unavailable", zap.Error(werr))
	} else if err := watcher.Start(ctx); err == nil {
		defer watcher.Stop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/turn", srv.handleTurn)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("tablewise listening", zap.String("addr", cfg.Server.Addr))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = "default"
	}

	s.mu.Lock()
	prev := s.lastTurns[req.ConversationID]
	s.mu.Unlock()

	resp, turn, err := s.app.orchestrator.Process(r.Context(), assistant.Request{
		ConversationID:           req.ConversationID,
		Prompt:                   req.Prompt,
		History:                  req.History,
		LastTurnWasClarification: req.LastTurnWasClarification,
		PreviousTurn:             prev,
	})
	if err != nil {
		s.logger.Warn("turn failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err))
		status := http.StatusInternalServerError
		if r.Context().Err() != nil {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, "turn processing failed", status)
		return
	}

	s.mu.Lock()
	s.lastTurns[req.ConversationID] = turn
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}
