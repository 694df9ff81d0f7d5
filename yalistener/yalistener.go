// Package yalistener consumes queue-triggered work for the bot from Redis
// streams. Each stream handler receives the bot client plus the message
// fields; returning normally acknowledges the message, returning an error
// leaves it pending for bounded retries and finally a dead-letter stream.
// Like the HTTP server it is a parallel entry point, not a router-tree
// participant, and can carry an embedded polling dispatcher.
package yalistener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yaerrors"
	"github.com/YaCodeDev/GoVKTeamsBot/yalogger"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// Config holds the consumer options, loadable from the environment.
type Config struct {
	// Group is the consumer group name; created on first run.
	Group string `envconfig:"GROUP" default:"vkteamsbot"`

	// Consumer identifies this process inside the group. Defaults to a
	// random UUID, which is right for stateless horizontally scaled
	// workers.
	Consumer string `envconfig:"CONSUMER"`

	// MaxRetries bounds redeliveries before a message is dead-lettered.
	MaxRetries int64 `envconfig:"MAX_RETRIES" default:"3"`

	// RetryAfter is how long a message may stay pending before another
	// consumer claims and retries it.
	RetryAfter time.Duration `envconfig:"RETRY_AFTER" default:"30s"`

	// Block is the XREADGROUP blocking budget per poll.
	Block time.Duration `envconfig:"BLOCK" default:"5s"`

	// BatchSize caps messages fetched per poll.
	BatchSize int64 `envconfig:"BATCH_SIZE" default:"16"`
}

// LoadConfig reads the configuration from BOT_LISTENER_* environment
// variables.
func LoadConfig() (*Config, yaerrors.Error) {
	var config Config

	if err := envconfig.Process("BOT_LISTENER", &config); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[LISTENER] failed to load config from environment",
		)
	}

	return &config, nil
}

func (c *Config) withDefaults() *Config {
	out := *c

	if out.Group == "" {
		out.Group = "vkteamsbot"
	}

	if out.Consumer == "" {
		out.Consumer = uuid.NewString()
	}

	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}

	if out.RetryAfter <= 0 {
		out.RetryAfter = 30 * time.Second
	}

	if out.Block <= 0 {
		out.Block = 5 * time.Second
	}

	if out.BatchSize <= 0 {
		out.BatchSize = 16
	}

	return &out
}

// MessageHandler processes one stream message. Returning nil acknowledges
// it; returning an error leaves it pending for the retry policy.
type MessageHandler func(
	ctx context.Context,
	bot yadispatcher.Bot,
	fields map[string]string,
) error

// Hook is a listener lifecycle callback.
type Hook func(ctx context.Context) error

// Listener consumes one or more Redis streams through a consumer group.
type Listener struct {
	client redis.UniversalClient
	bot    yadispatcher.Bot
	config *Config
	log    yalogger.Logger

	handlers map[string]MessageHandler

	startupHooks  []Hook
	shutdownHooks []Hook

	dispatcher *yadispatcher.Dispatcher
	polling    *yadispatcher.PollingOptions
}

// NewListener creates a listener bound to one bot client. A nil config
// selects every default.
func NewListener(
	client redis.UniversalClient,
	bot yadispatcher.Bot,
	config *Config,
	log yalogger.Logger,
) *Listener {
	if config == nil {
		config = &Config{}
	}

	if log == nil {
		log = yalogger.New(nil)
	}

	return &Listener{
		client:   client,
		bot:      bot,
		config:   config.withDefaults(),
		log:      log,
		handlers: make(map[string]MessageHandler),
	}
}

// Handle registers the handler for one stream. One handler per stream;
// registering twice replaces the previous one.
//
// Example:
//
//	listener.Handle("bot:notifications", func(
//		ctx context.Context,
//		bot yadispatcher.Bot,
//		fields map[string]string,
//	) error {
//		return sendNotification(ctx, bot, fields["chat_id"], fields["text"])
//	})
func (l *Listener) Handle(stream string, handler MessageHandler) {
	l.handlers[stream] = handler
}

// OnStartup registers a hook fired before consuming begins.
func (l *Listener) OnStartup(hook Hook) {
	l.startupHooks = append(l.startupHooks, hook)
}

// OnShutdown registers a hook fired after consuming stops.
func (l *Listener) OnShutdown(hook Hook) {
	l.shutdownHooks = append(l.shutdownHooks, hook)
}

// AttachDispatcher makes Run also poll updates through the given dispatcher.
// The bot client stays open when the listener stops; the caller owns it.
func (l *Listener) AttachDispatcher(
	dispatcher *yadispatcher.Dispatcher,
	options *yadispatcher.PollingOptions,
) {
	if options == nil {
		options = &yadispatcher.PollingOptions{}
	}

	options.CloseBotOnStop = false

	l.dispatcher = dispatcher
	l.polling = options
}

// deadLetterStream names the stream exhausted messages are parked on.
func deadLetterStream(stream string) string {
	return stream + ":dead"
}

// ensureGroup creates the consumer group from the stream head, tolerating an
// already-existing group.
func (l *Listener) ensureGroup(ctx context.Context, stream string) yaerrors.Error {
	err := l.client.XGroupCreateMkStream(ctx, stream, l.config.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[LISTENER] failed to create group on stream %q", stream),
		)
	}

	return nil
}

// Run consumes every registered stream until the context is cancelled.
func (l *Listener) Run(ctx context.Context) yaerrors.Error {
	if len(l.handlers) == 0 {
		return yaerrors.FromString(
			http.StatusInternalServerError,
			"[LISTENER] no stream handlers registered",
		)
	}

	for stream := range l.handlers {
		if err := l.ensureGroup(ctx, stream); err != nil {
			return err
		}
	}

	for _, hook := range l.startupHooks {
		if err := hook(ctx); err != nil {
			return yaerrors.FromError(
				http.StatusInternalServerError,
				err,
				"[LISTENER] startup hook failed",
			)
		}
	}

	var wg sync.WaitGroup

	if l.dispatcher != nil {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := l.dispatcher.StartPolling(ctx, l.polling, l.bot); err != nil {
				l.log.Errorf("embedded polling terminated: %v", err)
			}
		}()
	}

	for stream, handler := range l.handlers {
		wg.Add(1)

		go func(stream string, handler MessageHandler) {
			defer wg.Done()

			l.consume(ctx, stream, handler)
		}(stream, handler)
	}

	wg.Wait()

	for _, hook := range l.shutdownHooks {
		if err := hook(context.WithoutCancel(ctx)); err != nil {
			l.log.Errorf("shutdown hook failed: %v", err)
		}
	}

	return nil
}

// consume is the per-stream loop: retry stale pending messages first, then
// read fresh ones.
func (l *Listener) consume(ctx context.Context, stream string, handler MessageHandler) {
	log := l.log.WithField("stream", stream)

	for {
		if ctx.Err() != nil {
			return
		}

		l.retryPending(ctx, stream, handler, log)

		streams, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    l.config.Group,
			Consumer: l.config.Consumer,
			Streams:  []string{stream, ">"},
			Count:    l.config.BatchSize,
			Block:    l.config.Block,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Errorf("failed to read stream: %v", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}

			continue
		}

		for _, result := range streams {
			for _, message := range result.Messages {
				l.process(ctx, stream, handler, message, log)
			}
		}
	}
}

// process runs the handler for one message and acknowledges on success. A
// failing handler leaves the message pending, to be claimed again after
// RetryAfter.
func (l *Listener) process(
	ctx context.Context,
	stream string,
	handler MessageHandler,
	message redis.XMessage,
	log yalogger.Logger,
) {
	fields := make(map[string]string, len(message.Values))

	for key, value := range message.Values {
		fields[key] = fmt.Sprint(value)
	}

	if err := handler(ctx, l.bot, fields); err != nil {
		log.WithField("message_id", message.ID).
			Warnf("handler failed, message left pending: %v", err)

		return
	}

	if err := l.client.XAck(ctx, stream, l.config.Group, message.ID).Err(); err != nil {
		log.WithField("message_id", message.ID).
			Errorf("failed to ack message: %v", err)
	}
}

// retryPending claims messages idle longer than RetryAfter and retries them.
// Messages that exhausted MaxRetries are parked on the dead-letter stream
// and acknowledged.
func (l *Listener) retryPending(
	ctx context.Context,
	stream string,
	handler MessageHandler,
	log yalogger.Logger,
) {
	pending, err := l.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  l.config.Group,
		Idle:   l.config.RetryAfter,
		Start:  "-",
		End:    "+",
		Count:  l.config.BatchSize,
	}).Result()
	if err != nil || len(pending) == 0 {
		return
	}

	for _, entry := range pending {
		if entry.RetryCount > l.config.MaxRetries {
			l.deadLetter(ctx, stream, entry.ID, log)

			continue
		}

		claimed, err := l.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   stream,
			Group:    l.config.Group,
			Consumer: l.config.Consumer,
			MinIdle:  l.config.RetryAfter,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			continue
		}

		for _, message := range claimed {
			l.process(ctx, stream, handler, message, log)
		}
	}
}

// deadLetter copies an exhausted message onto the dead-letter stream and
// acknowledges the original.
func (l *Listener) deadLetter(
	ctx context.Context,
	stream string,
	messageID string,
	log yalogger.Logger,
) {
	claimed, err := l.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    l.config.Group,
		Consumer: l.config.Consumer,
		MinIdle:  l.config.RetryAfter,
		Messages: []string{messageID},
	}).Result()
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, message := range claimed {
		values := map[string]any{
			"origin_stream": stream,
			"origin_id":     message.ID,
		}

		for key, value := range message.Values {
			values[key] = value
		}

		if err := l.client.XAdd(ctx, &redis.XAddArgs{
			Stream: deadLetterStream(stream),
			Values: values,
		}).Err(); err != nil {
			log.WithField("message_id", message.ID).
				Errorf("failed to dead-letter message: %v", err)

			continue
		}

		if err := l.client.XAck(ctx, stream, l.config.Group, message.ID).Err(); err != nil {
			log.WithField("message_id", message.ID).
				Errorf("failed to ack dead-lettered message: %v", err)
		}

		log.WithField("message_id", message.ID).
			Warn("message exhausted retries, moved to dead-letter stream")
	}
}
