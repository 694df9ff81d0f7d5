package yadispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yabackoff"
	"github.com/YaCodeDev/GoVKTeamsBot/yafsm"
	"github.com/YaCodeDev/GoVKTeamsBot/yalogger"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// Bot is the API client contract the dispatcher polls. The client tracks its
// own event cursor: every GetEvents call returns updates newer than the last
// batch it handed out.
type Bot interface {
	// ID is the bot identity fragment used in FSM storage keys.
	ID() string

	// GetEvents long-polls for the next batch of updates, holding the
	// request open up to pollTime. A zero pollTime returns immediately
	// with whatever is already queued.
	GetEvents(ctx context.Context, pollTime time.Duration) ([]yatypes.Update, error)

	// Close releases the client's underlying session.
	Close() error
}

// Config tunes the dispatcher. Zero value means: in-memory FSM storage,
// per-user-per-chat strategy, edited messages kept in their own category, no
// session timeout.
type Config struct {
	// Storage is the FSM backend, defaulted to yafsm.NewMemoryStorage.
	Storage yafsm.Storage

	// Strategy derives FSM storage keys from event coordinates.
	Strategy yafsm.Strategy

	// EditedAsMessage re-tags edited messages into the message category, so
	// a single handler set covers both creation and edits.
	EditedAsMessage bool

	// SessionTimeout clears FSM state left idle longer than this. Idle time
	// is measured from the last dispatched update that left a state set,
	// not from when the conversation started. Zero disables expiry.
	SessionTimeout time.Duration

	// Logger defaults to a fresh yalogger.New(nil).
	Logger yalogger.Logger
}

// PollingOptions tunes one StartPolling run.
type PollingOptions struct {
	// PollTime is the server-side long-poll budget per GetEvents call.
	// Defaults to 30 seconds.
	PollTime time.Duration

	// SkipUpdates discards every already-queued update before the first
	// real poll.
	SkipUpdates bool

	// HandleSignals stops polling on SIGINT/SIGTERM.
	HandleSignals bool

	// CloseBotOnStop closes every bot client after polling stops. Leave it
	// off when the clients are embedded in a larger application that owns
	// their lifecycle.
	CloseBotOnStop bool
}

const defaultPollTime = 30 * time.Second

// Dispatcher is the root Router. It owns the long-poll loops, raw update
// resolution, FSM attachment with session-timeout eviction, and top-level
// error rerouting.
type Dispatcher struct {
	*Router

	storage         yafsm.Storage
	strategy        yafsm.Strategy
	editedAsMessage bool
	sessionTimeout  time.Duration
	log             yalogger.Logger

	// lastTouched tracks per-key idle time for session expiry. Keys are
	// stamped only while a state is set, so contextless chit-chat never
	// accumulates a timestamp.
	touchMutex  sync.Mutex
	lastTouched map[yafsm.StorageKey]time.Time

	runMutex sync.Mutex
	running  bool
	stop     context.CancelFunc
}

// NewDispatcher creates the root of a dispatch tree. A nil config selects
// every default.
func NewDispatcher(config *Config) *Dispatcher {
	if config == nil {
		config = &Config{}
	}

	storage := config.Storage
	if storage == nil {
		storage = yafsm.NewMemoryStorage()
	}

	log := config.Logger
	if log == nil {
		log = yalogger.New(nil)
	}

	return &Dispatcher{
		Router:          NewRouter("dispatcher"),
		storage:         storage,
		strategy:        config.Strategy,
		editedAsMessage: config.EditedAsMessage,
		sessionTimeout:  config.SessionTimeout,
		log:             log,
		lastTouched:     make(map[yafsm.StorageKey]time.Time),
	}
}

// Storage returns the FSM backend, for alternate event sources that bridge
// state changes into the same conversations.
func (d *Dispatcher) Storage() yafsm.Storage {
	return d.storage
}

// Strategy returns the FSM key derivation strategy.
func (d *Dispatcher) Strategy() yafsm.Strategy {
	return d.strategy
}

// categoryTable maps wire-level type tags to router categories.
var categoryTable = map[yatypes.EventType]Category{
	yatypes.EventNewMessage:      CategoryMessage,
	yatypes.EventEditedMessage:   CategoryEditedMessage,
	yatypes.EventDeletedMessage:  CategoryDeletedMessage,
	yatypes.EventPinnedMessage:   CategoryPinnedMessage,
	yatypes.EventUnpinnedMessage: CategoryUnpinnedMessage,
	yatypes.EventNewChatMembers:  CategoryNewChatMembers,
	yatypes.EventLeftChatMembers: CategoryLeftChatMembers,
	yatypes.EventChangedChatInfo: CategoryChangedChatInfo,
	yatypes.EventCallbackQuery:   CategoryCallbackQuery,
}

// resolveEvent turns a raw update into (category, typed event). Unknown
// wire-level types yield ok=false and are skipped by the caller; future event
// kinds must never break the poll loop.
func (d *Dispatcher) resolveEvent(
	bot Bot,
	update *yatypes.Update,
) (Category, yatypes.Event, bool, error) {
	category, known := categoryTable[update.Type]
	if !known {
		return "", nil, false, nil
	}

	switch category {
	case CategoryMessage,
		CategoryEditedMessage,
		CategoryDeletedMessage,
		CategoryPinnedMessage,
		CategoryUnpinnedMessage:
		var message yatypes.Message
		if err := json.Unmarshal(update.Payload, &message); err != nil {
			return "", nil, false, err
		}

		message.SetBot(bot)

		if category == CategoryEditedMessage && d.editedAsMessage {
			category = CategoryMessage
		}

		return category, &message, true, nil

	case CategoryCallbackQuery:
		var query yatypes.CallbackQuery
		if err := json.Unmarshal(update.Payload, &query); err != nil {
			return "", nil, false, err
		}

		query.SetBot(bot)
		query.Normalize()

		if query.Message != nil {
			query.Message.SetBot(bot)
		}

		return category, &query, true, nil

	case CategoryNewChatMembers:
		var event yatypes.NewChatMembersEvent
		if err := json.Unmarshal(update.Payload, &event); err != nil {
			return "", nil, false, err
		}

		event.SetBot(bot)

		return category, &event, true, nil

	case CategoryLeftChatMembers:
		var event yatypes.LeftChatMembersEvent
		if err := json.Unmarshal(update.Payload, &event); err != nil {
			return "", nil, false, err
		}

		event.SetBot(bot)

		return category, &event, true, nil

	case CategoryChangedChatInfo:
		var event yatypes.ChangedChatInfoEvent
		if err := json.Unmarshal(update.Payload, &event); err != nil {
			return "", nil, false, err
		}

		event.SetBot(bot)

		return category, &event, true, nil
	}

	return "", nil, false, nil
}

// FeedUpdate resolves one raw update, attaches FSM context, dispatches it
// through the router tree and performs the session-timeout bookkeeping.
//
// Handler failures are rerouted to the error category; failures nobody
// claims are logged and swallowed, so a single bad update never kills the
// poll loop. Context cancellation is the one error that propagates.
func (d *Dispatcher) FeedUpdate(
	ctx context.Context,
	bot Bot,
	update yatypes.Update,
) (any, error) {
	log := d.log.WithRandomRequestID().WithField("event_id", update.EventID)

	category, event, ok, err := d.resolveEvent(bot, &update)
	if err != nil {
		log.WithField("event_type", update.Type).
			Errorf("failed to bind update payload: %v", err)

		return Unhandled, nil
	}

	if !ok {
		log.WithField("event_type", update.Type).
			Debug("unknown event type, dropping update")

		return Unhandled, nil
	}

	data := &Data{
		Bot:          bot,
		RawEvent:     &update,
		EventType:    update.Type,
		Chat:         event.EventChat(),
		FromUser:     event.EventSender(),
		CurrentState: yafsm.NoState,
	}

	var key yafsm.StorageKey

	hasFSM := false

	chatID, userID := "", ""
	if data.Chat != nil {
		chatID = data.Chat.ChatID
	}

	if data.FromUser != nil {
		userID = data.FromUser.UserID
	}

	// Anonymous events never get state.
	if chatID != "" || userID != "" {
		key = d.strategy.BuildKey(bot.ID(), chatID, userID)
		hasFSM = true

		fsm := yafsm.NewContext(d.storage, key)
		data.FSM = fsm

		state, serr := fsm.GetState(ctx)
		if serr != nil {
			log.Errorf("failed to load FSM state: %v", serr)
		}

		if state != yafsm.NoState && d.expireIfStale(ctx, fsm, key, log) {
			state = yafsm.NoState
		}

		data.CurrentState = state
	}

	result, err := d.dispatch(ctx, category, event, data, log)
	if err != nil {
		return nil, err
	}

	// Idle bookkeeping costs a state re-read per update; skip it entirely
	// when session expiry is disabled.
	if hasFSM && d.sessionTimeout > 0 {
		d.touchKey(ctx, key)
	}

	return result, nil
}

// expireIfStale clears the FSM record when the key's idle time exceeds the
// configured session timeout. The clear happens before handler invocation,
// so handlers observe a fresh expiry as "no state", never stale data.
func (d *Dispatcher) expireIfStale(
	ctx context.Context,
	fsm *yafsm.Context,
	key yafsm.StorageKey,
	log yalogger.Logger,
) bool {
	if d.sessionTimeout <= 0 {
		return false
	}

	d.touchMutex.Lock()
	touched, tracked := d.lastTouched[key]

	if !tracked || time.Since(touched) <= d.sessionTimeout {
		d.touchMutex.Unlock()

		return false
	}

	delete(d.lastTouched, key)
	d.touchMutex.Unlock()

	if err := fsm.Clear(ctx); err != nil {
		log.Errorf("failed to clear expired FSM record: %v", err)
	}

	log.WithFields(map[string]any{
		"chat_id": key.ChatID,
		"user_id": key.UserID,
	}).Debug("session timed out, state cleared")

	return true
}

// touchKey refreshes the idle timer after dispatch: keys holding a state are
// stamped to now, keys whose handler cleared the state drop their timestamp
// entirely.
func (d *Dispatcher) touchKey(ctx context.Context, key yafsm.StorageKey) {
	state, err := d.storage.GetState(ctx, key)
	if err != nil {
		d.log.Errorf("failed to re-read FSM state for session tracking: %v", err)

		return
	}

	d.touchMutex.Lock()
	defer d.touchMutex.Unlock()

	if state == yafsm.NoState {
		delete(d.lastTouched, key)

		return
	}

	d.lastTouched[key] = time.Now()
}

// dispatch runs propagation with top-level error rerouting: uncaught handler
// errors become error-category events; errors nobody claims are logged and
// swallowed.
func (d *Dispatcher) dispatch(
	ctx context.Context,
	category Category,
	event yatypes.Event,
	data *Data,
	log yalogger.Logger,
) (any, error) {
	result, err := d.PropagateEvent(ctx, category, event, data)
	if err == nil {
		return result, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	errEvent := &ErrorEvent{Err: err, Source: event, Update: data.RawEvent}

	rerouted, rerr := d.PropagateEvent(ctx, CategoryError, errEvent, data.Clone())
	if rerr == nil && !IsUnhandled(rerouted) {
		return rerouted, nil
	}

	if rerr != nil {
		log.Errorf("error handler failed: %v (original: %v)", rerr, err)
	} else {
		log.Errorf("unhandled dispatch error: %v", err)
	}

	return Unhandled, nil
}

// IsRunning reports whether a StartPolling call is active.
func (d *Dispatcher) IsRunning() bool {
	d.runMutex.Lock()
	defer d.runMutex.Unlock()

	return d.running
}

// Stop cancels every in-flight polling loop. StartPolling returns after the
// loops drain.
func (d *Dispatcher) Stop() {
	d.runMutex.Lock()
	defer d.runMutex.Unlock()

	if d.stop != nil {
		d.stop()
	}
}

// StartPolling runs the whole lifecycle: startup hooks, one polling loop per
// bot, shutdown hooks. It blocks until the context is cancelled, Stop is
// called, or (with HandleSignals) an interrupt arrives.
//
// Example:
//
//	dp := yadispatcher.NewDispatcher(nil)
//	dp.IncludeRouter(router)
//
//	err := dp.StartPolling(ctx, &yadispatcher.PollingOptions{
//		HandleSignals:  true,
//		CloseBotOnStop: true,
//	}, bot)
func (d *Dispatcher) StartPolling(
	ctx context.Context,
	options *PollingOptions,
	bots ...Bot,
) error {
	if options == nil {
		options = &PollingOptions{}
	}

	pollTime := options.PollTime
	if pollTime <= 0 {
		pollTime = defaultPollTime
	}

	d.runMutex.Lock()
	if d.running {
		d.runMutex.Unlock()

		return errors.New("dispatcher is already polling")
	}

	if options.HandleSignals {
		var stopSignals context.CancelFunc
		ctx, stopSignals = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stopSignals()
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.running = true
	d.stop = cancel
	d.runMutex.Unlock()

	defer func() {
		d.runMutex.Lock()
		d.running = false
		d.stop = nil
		d.runMutex.Unlock()
	}()

	if err := d.EmitStartup(pollCtx); err != nil {
		return err
	}

	if options.SkipUpdates {
		for _, bot := range bots {
			if _, err := bot.GetEvents(pollCtx, 0); err != nil {
				d.log.WithField("bot_id", bot.ID()).
					Warnf("failed to discard queued updates: %v", err)
			}
		}
	}

	var wg sync.WaitGroup

	for _, bot := range bots {
		wg.Add(1)

		go func(bot Bot) {
			defer wg.Done()

			d.pollBot(pollCtx, bot, pollTime)
		}(bot)
	}

	wg.Wait()

	shutdownErr := d.EmitShutdown(context.WithoutCancel(pollCtx))

	if options.CloseBotOnStop {
		for _, bot := range bots {
			if err := bot.Close(); err != nil {
				d.log.WithField("bot_id", bot.ID()).
					Warnf("failed to close bot client: %v", err)
			}
		}
	}

	return shutdownErr
}

// pollBot is the per-client loop: long-poll, feed every update in order,
// back off exponentially on transport faults with log severity decaying as
// the same fault repeats.
func (d *Dispatcher) pollBot(ctx context.Context, bot Bot, pollTime time.Duration) {
	log := d.log.WithField("bot_id", bot.ID())

	backoff := yabackoff.NewExponential(0, 0, 0)

	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := bot.GetEvents(ctx, pollTime)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			delay := backoff.Next()

			message := "failed to poll events, retrying in %s: %v"

			switch attempts := backoff.Attempts(); {
			case attempts <= 1:
				log.Errorf(message, delay, err)
			case attempts <= 4:
				log.Warnf(message, delay, err)
			default:
				log.Debugf(message, delay, err)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			continue
		}

		backoff.Reset()

		for _, update := range updates {
			if _, err := d.FeedUpdate(ctx, bot, update); err != nil {
				if ctx.Err() != nil {
					return
				}

				log.Errorf("failed to feed update %d: %v", update.EventID, err)
			}
		}
	}
}
