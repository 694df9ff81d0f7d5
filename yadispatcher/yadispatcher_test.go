package yadispatcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yafilters"
	"github.com/YaCodeDev/GoVKTeamsBot/yafsm"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	id     string
	closed bool
}

func (b *fakeBot) ID() string {
	return b.id
}

func (b *fakeBot) GetEvents(
	_ context.Context,
	_ time.Duration,
) ([]yatypes.Update, error) {
	return nil, nil
}

func (b *fakeBot) Close() error {
	b.closed = true

	return nil
}

func messageUpdate(t *testing.T, eventID int64, text string) yatypes.Update {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"msgId": fmt.Sprintf("msg-%d", eventID),
		"chat":  map[string]any{"chatId": "chat1", "type": "private"},
		"from":  map[string]any{"userId": "user1@corp.example"},
		"text":  text,
	})

	require.NoError(t, err)

	return yatypes.Update{
		EventID: eventID,
		Type:    yatypes.EventNewMessage,
		Payload: payload,
	}
}

func matchAll(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (bool, error) {
	return true, nil
}

func matchNone(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (bool, error) {
	return false, nil
}

func returning(result any) yadispatcher.Callback {
	return func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		return result, nil
	}
}

func TestUnhandled_Sentinel(t *testing.T) {
	t.Parallel()

	assert.True(t, yadispatcher.IsUnhandled(yadispatcher.Unhandled))
	assert.False(t, yadispatcher.IsUnhandled(nil))
	assert.False(t, yadispatcher.IsUnhandled("pong"))
	assert.Equal(t, "UNHANDLED", fmt.Sprint(yadispatcher.Unhandled))
}

func TestObserver_FirstMatchWins(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")

	thirdCalls := 0

	router.Message().Register(returning("never"), matchNone)
	router.Message().Register(returning("A"), matchAll)
	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		thirdCalls++

		return "B", nil
	}, matchAll)

	result, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, "A", result)
	assert.Zero(t, thirdCalls)
}

func TestObserver_NoFiltersMeansUnconditionalMatch(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")
	router.Message().Register(returning("always"))

	result, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, "always", result)
}

func TestObserver_SkipContinuesToNextHandler(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")

	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		return nil, yadispatcher.ErrSkipHandler
	})
	router.Message().Register(returning("second"))

	result, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, "second", result)
}

func TestObserver_CancelStopsChain(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")

	laterCalls := 0

	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		return nil, yadispatcher.ErrCancelChain
	})
	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		laterCalls++

		return "later", nil
	})

	result, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.True(t, yadispatcher.IsUnhandled(result))
	assert.Zero(t, laterCalls)
}

func TestObserver_NoLeakBetweenHandlerProbes(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")

	injecting := func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (bool, error) {
		data.Set("leak", "value")

		return false, nil
	}

	router.Message().Register(returning("never"), injecting)
	router.Message().Register(func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (any, error) {
		_, leaked := data.Get("leak")

		return leaked, nil
	})

	result, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestFilter_Combinators(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	event := &yatypes.Message{}

	t.Run("and with self is idempotent", func(t *testing.T) {
		for _, filter := range []yadispatcher.Filter{matchAll, matchNone} {
			single, err := filter(ctx, event, &yadispatcher.Data{})
			require.NoError(t, err)

			doubled, err := yadispatcher.And(filter, filter)(ctx, event, &yadispatcher.Data{})
			require.NoError(t, err)

			assert.Equal(t, single, doubled)
		}
	})

	t.Run("double negation is identity", func(t *testing.T) {
		for _, filter := range []yadispatcher.Filter{matchAll, matchNone} {
			single, err := filter(ctx, event, &yadispatcher.Data{})
			require.NoError(t, err)

			doubled, err := yadispatcher.Not(yadispatcher.Not(filter))(ctx, event, &yadispatcher.Data{})
			require.NoError(t, err)

			assert.Equal(t, single, doubled)
		}
	})

	t.Run("or keeps only the winning branch's injections", func(t *testing.T) {
		loser := func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (bool, error) {
			data.Set("loser", true)

			return false, nil
		}

		winner := func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (bool, error) {
			data.Set("winner", true)

			return true, nil
		}

		data := &yadispatcher.Data{}

		ok, err := yadispatcher.Or(loser, winner)(ctx, event, data)

		require.NoError(t, err)
		assert.True(t, ok)

		_, hasLoser := data.Get("loser")
		_, hasWinner := data.Get("winner")

		assert.False(t, hasLoser)
		assert.True(t, hasWinner)
	})
}

func TestRouter_DepthFirstLocalFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("child wins when root has no match", func(t *testing.T) {
		root := yadispatcher.NewRouter("root")
		child := yadispatcher.NewRouter("child")
		root.IncludeRouter(child)

		root.Message().Register(returning("root"), matchNone)
		child.Message().Register(returning("child"), matchAll)

		result, err := root.PropagateEvent(ctx, yadispatcher.CategoryMessage, &yatypes.Message{}, &yadispatcher.Data{})

		require.NoError(t, err)
		assert.Equal(t, "child", result)
	})

	t.Run("root match shadows the child entirely", func(t *testing.T) {
		root := yadispatcher.NewRouter("root")
		child := yadispatcher.NewRouter("child")
		root.IncludeRouter(child)

		childCalls := 0

		root.Message().Register(returning("root"), matchAll)
		child.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
			childCalls++

			return "child", nil
		}, matchAll)

		result, err := root.PropagateEvent(ctx, yadispatcher.CategoryMessage, &yatypes.Message{}, &yadispatcher.Data{})

		require.NoError(t, err)
		assert.Equal(t, "root", result)
		assert.Zero(t, childCalls)
	})

	t.Run("all unhandled propagates the sentinel", func(t *testing.T) {
		root := yadispatcher.NewRouter("root")
		child := yadispatcher.NewRouter("child")
		root.IncludeRouter(child)

		result, err := root.PropagateEvent(ctx, yadispatcher.CategoryMessage, &yatypes.Message{}, &yadispatcher.Data{})

		require.NoError(t, err)
		assert.True(t, yadispatcher.IsUnhandled(result))
	})
}

func TestRouter_DoubleIncludePanics(t *testing.T) {
	t.Parallel()

	first := yadispatcher.NewRouter("first")
	second := yadispatcher.NewRouter("second")
	child := yadispatcher.NewRouter("child")

	first.IncludeRouter(child)

	assert.Panics(t, func() {
		second.IncludeRouter(child)
	})

	assert.Panics(t, func() {
		first.IncludeRouter(first)
	})
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")

	var order []string

	named := func(name string) yadispatcher.Middleware {
		return func(ctx context.Context, event yatypes.Event, data *yadispatcher.Data, next yadispatcher.Next) (any, error) {
			order = append(order, name+" in")

			result, err := next(ctx, event, data)

			order = append(order, name+" out")

			return result, err
		}
	}

	router.Message().Use(named("m1"))
	router.Message().Use(named("m2"))

	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		order = append(order, "terminal")

		return nil, nil
	})

	_, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, []string{"m1 in", "m2 in", "terminal", "m2 out", "m1 out"}, order)
}

func TestRouter_MiddlewareShortCircuit(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")

	router.Message().Use(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data, _ yadispatcher.Next) (any, error) {
		return "short-circuited", nil
	})

	handlerCalls := 0

	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		handlerCalls++

		return "handled", nil
	})

	result, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, "short-circuited", result)
	assert.Zero(t, handlerCalls)
}

func TestRouter_OuterMiddlewareWrapsSubtree(t *testing.T) {
	t.Parallel()

	root := yadispatcher.NewRouter("root")
	child := yadispatcher.NewRouter("child")
	root.IncludeRouter(child)

	var order []string

	root.Message().UseOuter(func(ctx context.Context, event yatypes.Event, data *yadispatcher.Data, next yadispatcher.Next) (any, error) {
		order = append(order, "outer in")

		result, err := next(ctx, event, data)

		order = append(order, "outer out")

		return result, err
	})

	child.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		order = append(order, "child handler")

		return "child", nil
	})

	result, err := root.PropagateEvent(context.Background(), yadispatcher.CategoryMessage, &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, "child", result)
	assert.Equal(t, []string{"outer in", "child handler", "outer out"}, order)
}

func TestErrorMiddleware_ReroutesHandlerErrors(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")
	router.Message().Use(yadispatcher.ErrorMiddleware(router))

	boom := errors.New("boom")

	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		return nil, boom
	})

	router.Error().Register(func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (any, error) {
		errEvent, ok := event.(*yadispatcher.ErrorEvent)
		require.True(t, ok)
		assert.ErrorIs(t, errEvent.Err, boom)

		return "recovered", nil
	})

	result, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
}

func TestErrorMiddleware_ReRaisesWhenUnclaimed(t *testing.T) {
	t.Parallel()

	router := yadispatcher.NewRouter("test")
	router.Message().Use(yadispatcher.ErrorMiddleware(router))

	boom := errors.New("boom")

	router.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		return nil, boom
	})

	_, err := router.Message().Trigger(context.Background(), &yatypes.Message{}, &yadispatcher.Data{})

	assert.ErrorIs(t, err, boom)
}

func TestRouter_LifecycleHooksRootFirstDepthFirst(t *testing.T) {
	t.Parallel()

	root := yadispatcher.NewRouter("root")
	childA := yadispatcher.NewRouter("a")
	childB := yadispatcher.NewRouter("b")
	grandchild := yadispatcher.NewRouter("a1")

	root.IncludeRouters(childA, childB)
	childA.IncludeRouter(grandchild)

	var order []string

	record := func(name string) yadispatcher.LifecycleHook {
		return func(_ context.Context) error {
			order = append(order, name)

			return nil
		}
	}

	root.OnStartup(record("root"))
	childA.OnStartup(record("a"))
	childB.OnStartup(record("b"))
	grandchild.OnStartup(record("a1"))

	require.NoError(t, root.EmitStartup(context.Background()))
	assert.Equal(t, []string{"root", "a", "a1", "b"}, order)
}

func TestDispatcher_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	dp := yadispatcher.NewDispatcher(nil)
	child := yadispatcher.NewRouter("child")
	dp.IncludeRouter(child)

	child.Message().Register(returning("pong"), yafilters.Command("ping"))

	bot := &fakeBot{id: "bot1"}

	t.Run("matching command yields the handler result", func(t *testing.T) {
		result, err := dp.FeedUpdate(ctx, bot, messageUpdate(t, 1, "/ping"))

		require.NoError(t, err)
		assert.Equal(t, "pong", result)
	})

	t.Run("unmatched command yields the sentinel", func(t *testing.T) {
		result, err := dp.FeedUpdate(ctx, bot, messageUpdate(t, 2, "/other"))

		require.NoError(t, err)
		assert.True(t, yadispatcher.IsUnhandled(result))
	})
}

func TestDispatcher_UnknownEventTypeIsDropped(t *testing.T) {
	t.Parallel()

	dp := yadispatcher.NewDispatcher(nil)

	result, err := dp.FeedUpdate(context.Background(), &fakeBot{id: "bot1"}, yatypes.Update{
		EventID: 1,
		Type:    "futureEventKind",
		Payload: json.RawMessage(`{}`),
	})

	require.NoError(t, err)
	assert.True(t, yadispatcher.IsUnhandled(result))
}

func TestDispatcher_EditedAsMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	payload, err := json.Marshal(map[string]any{
		"msgId":           "msg-1",
		"chat":            map[string]any{"chatId": "chat1", "type": "private"},
		"from":            map[string]any{"userId": "user1@corp.example"},
		"text":            "edited text",
		"editedTimestamp": 1720000000,
	})
	require.NoError(t, err)

	update := yatypes.Update{
		EventID: 1,
		Type:    yatypes.EventEditedMessage,
		Payload: payload,
	}

	t.Run("disabled keeps edits in their own category", func(t *testing.T) {
		dp := yadispatcher.NewDispatcher(nil)

		dp.EditedMessage().Register(returning("edited"))
		dp.Message().Register(returning("message"))

		result, err := dp.FeedUpdate(ctx, &fakeBot{id: "bot1"}, update)

		require.NoError(t, err)
		assert.Equal(t, "edited", result)
	})

	t.Run("enabled re-tags edits into the message category", func(t *testing.T) {
		dp := yadispatcher.NewDispatcher(&yadispatcher.Config{EditedAsMessage: true})

		dp.Message().Register(func(_ context.Context, event yatypes.Event, data *yadispatcher.Data) (any, error) {
			message, ok := event.(*yatypes.Message)
			require.True(t, ok)
			assert.True(t, message.IsEdited())
			assert.Equal(t, yatypes.EventEditedMessage, data.EventType)

			return "message", nil
		})

		result, err := dp.FeedUpdate(ctx, &fakeBot{id: "bot1"}, update)

		require.NoError(t, err)
		assert.Equal(t, "message", result)
	})
}

func TestDispatcher_SwallowsUnclaimedHandlerErrors(t *testing.T) {
	t.Parallel()

	dp := yadispatcher.NewDispatcher(nil)

	dp.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		return nil, errors.New("boom")
	})

	result, err := dp.FeedUpdate(context.Background(), &fakeBot{id: "bot1"}, messageUpdate(t, 1, "hi"))

	require.NoError(t, err)
	assert.True(t, yadispatcher.IsUnhandled(result))
}

func TestDispatcher_ErrorCategoryClaimsHandlerErrors(t *testing.T) {
	t.Parallel()

	dp := yadispatcher.NewDispatcher(nil)

	boom := errors.New("boom")

	dp.Message().Register(func(_ context.Context, _ yatypes.Event, _ *yadispatcher.Data) (any, error) {
		return nil, boom
	})

	dp.Error().Register(func(_ context.Context, event yatypes.Event, _ *yadispatcher.Data) (any, error) {
		errEvent, ok := event.(*yadispatcher.ErrorEvent)
		require.True(t, ok)
		assert.ErrorIs(t, errEvent, boom)
		assert.NotNil(t, errEvent.EventChat())

		return "handled error", nil
	})

	result, err := dp.FeedUpdate(context.Background(), &fakeBot{id: "bot1"}, messageUpdate(t, 1, "hi"))

	require.NoError(t, err)
	assert.Equal(t, "handled error", result)
}

func TestDispatcher_FSMStateFlowsIntoFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	form := yafsm.NewStatesGroup("Form")
	waiting := form.NewState("waiting")

	dp := yadispatcher.NewDispatcher(nil)

	dp.Message().Register(func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (any, error) {
		require.NotNil(t, data.FSM)

		return "asked", data.FSM.SetState(ctx, waiting)
	}, yafilters.Command("ask"), yafilters.NoState())

	dp.Message().Register(returning("answered"), yafilters.StateEq(waiting))

	bot := &fakeBot{id: "bot1"}

	result, err := dp.FeedUpdate(ctx, bot, messageUpdate(t, 1, "/ask"))

	require.NoError(t, err)
	assert.Equal(t, "asked", result)

	result, err = dp.FeedUpdate(ctx, bot, messageUpdate(t, 2, "anything"))

	require.NoError(t, err)
	assert.Equal(t, "answered", result)
}
