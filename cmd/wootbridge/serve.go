package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/wootbridge/wootbridge/internal/bridge"
	"github.com/wootbridge/wootbridge/internal/chatwoot"
	"github.com/wootbridge/wootbridge/internal/config"
	"github.com/wootbridge/wootbridge/internal/db"
	"github.com/wootbridge/wootbridge/internal/handlers"
	"github.com/wootbridge/wootbridge/internal/ledger"
	"github.com/wootbridge/wootbridge/internal/logger"
	"github.com/wootbridge/wootbridge/internal/server"
	"github.com/wootbridge/wootbridge/internal/telegram"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBPool,
			provideChatwootClient,
			provideTelegramClient,
			provideLedgerStore,
			provideResolver,
			provideInbound,
			provideOutbound,
			provideReplayer,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideSendHandler),
			provideServer,
		),
		fx.Invoke(
			startTelegramListener,
			startReplayer,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	return loadConfig()
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Log)
}

func provideDBPool(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(log, cfg.Postgres); err != nil {
		return nil, err
	}
	pool, err := db.Open(context.Background(), log, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideChatwootClient(log *slog.Logger, cfg config.Config) *chatwoot.Client {
	timeout := time.Duration(cfg.Chatwoot.TimeoutSeconds) * time.Second
	return chatwoot.NewClient(log, cfg.Chatwoot.BaseURL, cfg.Chatwoot.AccountID, cfg.Chatwoot.APIKey, timeout)
}

func provideTelegramClient(log *slog.Logger, cfg config.Config) (*telegram.Client, error) {
	return telegram.NewClient(log, cfg.Telegram.BotToken, cfg.Telegram.PollTimeoutSeconds)
}

func provideLedgerStore(log *slog.Logger, pool *pgxpool.Pool) *ledger.Store {
	return ledger.NewStore(log, pool)
}

func provideResolver(log *slog.Logger, client *chatwoot.Client) *bridge.Resolver {
	return bridge.NewResolver(log, client)
}

func provideInbound(log *slog.Logger, client *chatwoot.Client, resolver *bridge.Resolver, store *ledger.Store, cfg config.Config) *bridge.Inbound {
	return bridge.NewInbound(log, client, resolver, store, cfg.Chatwoot.InboxID, cfg.Telegram.IgnoreGroups)
}

func provideOutbound(log *slog.Logger, client *chatwoot.Client, transport *telegram.Client, store *ledger.Store) *bridge.Outbound {
	return bridge.NewOutbound(log, client, transport, store)
}

// provideReplayer wires replay through forwarders without a ledger: a replay
// that fails again stays in place via transaction rollback instead of being
// re-appended as a duplicate.
func provideReplayer(log *slog.Logger, store *ledger.Store, client *chatwoot.Client, transport *telegram.Client, resolver *bridge.Resolver, cfg config.Config) *ledger.Replayer {
	inbound := bridge.NewInbound(log, client, resolver, nil, cfg.Chatwoot.InboxID, cfg.Telegram.IgnoreGroups)
	outbound := bridge.NewOutbound(log, client, transport, nil)
	handler := func(ctx context.Context, record ledger.Record) error {
		return replayRecord(ctx, inbound, outbound, record)
	}
	return ledger.NewReplayer(log, store, handler, cfg.Replay.Schedule, cfg.Replay.BatchSize)
}

func replayRecord(ctx context.Context, inbound *bridge.Inbound, outbound *bridge.Outbound, record ledger.Record) error {
	switch record.Direction {
	case bridge.DirectionInbound:
		return inbound.Forward(ctx, bridge.InboundMessage{
			SenderID:  payloadInt64(record.Payload, "sender_id"),
			Username:  payloadString(record.Payload, "username"),
			FirstName: payloadString(record.Payload, "first_name"),
			LastName:  payloadString(record.Payload, "last_name"),
			Phone:     payloadString(record.Payload, "phone"),
			Text:      payloadString(record.Payload, "text"),
		})
	case bridge.DirectionOutbound:
		return outbound.Forward(ctx, bridge.WebhookEvent{
			Event:       "message_created",
			MessageType: "outgoing",
			Content:     payloadString(record.Payload, "content"),
			Conversation: &bridge.EventConversation{
				ID:       int(payloadInt64(record.Payload, "conversation_id")),
				SourceID: payloadString(record.Payload, "source_id"),
			},
		})
	default:
		return fmt.Errorf("unknown ledger direction: %s", record.Direction)
	}
}

func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func payloadInt64(payload map[string]any, key string) int64 {
	switch n := payload[key].(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func providePingHandler(log *slog.Logger, store *ledger.Store) *handlers.PingHandler {
	return handlers.NewPingHandler(log, store)
}

func provideWebhookHandler(log *slog.Logger, outbound *bridge.Outbound, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, outbound, cfg.Chatwoot.WebhookToken)
}

func provideSendHandler(log *slog.Logger, transport *telegram.Client, cfg config.Config) *handlers.SendHandler {
	return handlers.NewSendHandler(log, transport, cfg.Send.Token)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.Handlers...)
}

func startTelegramListener(lc fx.Lifecycle, transport *telegram.Client, inbound *bridge.Inbound) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go transport.Listen(ctx, inbound.Forward)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}

func startReplayer(lc fx.Lifecycle, replayer *ledger.Replayer) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return replayer.Start() },
		OnStop:  func(_ context.Context) error { replayer.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
