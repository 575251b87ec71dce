package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"infernode/identity"
	"infernode/session"
	"infernode/shared"

	"go.uber.org/zap"
)

// Node is the inference node's protocol endpoint: it owns the static
// identity key, the session key registry and the handlers wired to it.
type Node struct {
	logger    *shared.Logger
	config    *Config
	keys      *identity.KeyPair
	registry  session.KeyRegistry
	handshake *session.HandshakeHandler
	messages  *session.MessageHandler
	engine    Engine
	binder    JobBinder
}

// NewNode wires the protocol components together. The registry is injected
// so tests can run isolated instances.
func NewNode(logger *shared.Logger, config *Config, keys *identity.KeyPair, registry session.KeyRegistry, engine Engine, binder JobBinder) *Node {
	return &Node{
		logger:    logger,
		config:    config,
		keys:      keys,
		registry:  registry,
		handshake: session.NewHandshakeHandler(registry, keys.PrivateKey),
		messages:  session.NewMessageHandler(registry),
		engine:    engine,
		binder:    binder,
	}
}

func (n *Node) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", n.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func main() {
	logger, err := shared.NewLoggerFromEnv("infernode")
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	var keys *identity.KeyPair
	if config.NodePrivateKey != "" {
		keys, err = identity.LoadKeyPair(config.NodePrivateKey)
	} else {
		logger.Warn("No NODE_PRIVATE_KEY set, generating an ephemeral identity")
		keys, err = identity.GenerateKeyPair()
	}
	if err != nil {
		logger.Fatal("Failed to load node identity", zap.Error(err))
	}
	logger.Info("Node identity loaded", zap.String("address", keys.Address().Hex()))

	var binder JobBinder
	if config.JobTicketSecret != "" {
		binder = NewTicketBinder(config.JobTicketSecret)
	} else {
		logger.Warn("Job ticket verification disabled, trusting recovered identities")
		binder = &DevBinder{}
	}

	node := NewNode(logger, config, keys, session.NewMemoryRegistry(), &EchoEngine{}, binder)

	server := &http.Server{
		Addr:    config.ListenAddr,
		Handler: node.routes(),
	}

	go func() {
		logger.Info("Listening", zap.String("addr", config.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
