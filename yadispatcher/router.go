package yadispatcher

import (
	"context"
	"fmt"

	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// Category discriminates which Observer within a Router handles an event.
type Category string

const (
	CategoryMessage         Category = "message"
	CategoryEditedMessage   Category = "edited_message"
	CategoryDeletedMessage  Category = "deleted_message"
	CategoryPinnedMessage   Category = "pinned_message"
	CategoryUnpinnedMessage Category = "unpinned_message"
	CategoryNewChatMembers  Category = "new_chat_members"
	CategoryLeftChatMembers Category = "left_chat_members"
	CategoryChangedChatInfo Category = "changed_chat_info"
	CategoryCallbackQuery   Category = "callback_query"
	CategoryError           Category = "error"
)

// LifecycleHook is a startup or shutdown callback.
type LifecycleHook func(ctx context.Context) error

// Router is a named node of the dispatch tree: one Observer per recognized
// event category, zero or more child routers, and ordered lifecycle hooks.
// Wire the tree with IncludeRouter before the dispatcher starts; routers are
// never detached at runtime.
type Router struct {
	name      string
	parent    *Router
	children  []*Router
	observers map[Category]*Observer

	startupHooks  []LifecycleHook
	shutdownHooks []LifecycleHook
}

// NewRouter creates a router with empty observers for every category.
func NewRouter(name string) *Router {
	observers := make(map[Category]*Observer)

	for _, category := range []Category{
		CategoryMessage,
		CategoryEditedMessage,
		CategoryDeletedMessage,
		CategoryPinnedMessage,
		CategoryUnpinnedMessage,
		CategoryNewChatMembers,
		CategoryLeftChatMembers,
		CategoryChangedChatInfo,
		CategoryCallbackQuery,
		CategoryError,
	} {
		observers[category] = &Observer{}
	}

	return &Router{
		name:      name,
		observers: observers,
	}
}

// Name returns the router's name.
func (r *Router) Name() string {
	return r.name
}

// Observer returns the observer for an arbitrary category, nil when the
// category is unrecognized.
func (r *Router) Observer(category Category) *Observer {
	return r.observers[category]
}

func (r *Router) Message() *Observer         { return r.observers[CategoryMessage] }
func (r *Router) EditedMessage() *Observer   { return r.observers[CategoryEditedMessage] }
func (r *Router) DeletedMessage() *Observer  { return r.observers[CategoryDeletedMessage] }
func (r *Router) PinnedMessage() *Observer   { return r.observers[CategoryPinnedMessage] }
func (r *Router) UnpinnedMessage() *Observer { return r.observers[CategoryUnpinnedMessage] }
func (r *Router) NewChatMembers() *Observer  { return r.observers[CategoryNewChatMembers] }
func (r *Router) LeftChatMembers() *Observer { return r.observers[CategoryLeftChatMembers] }
func (r *Router) ChangedChatInfo() *Observer { return r.observers[CategoryChangedChatInfo] }
func (r *Router) CallbackQuery() *Observer   { return r.observers[CategoryCallbackQuery] }
func (r *Router) Error() *Observer           { return r.observers[CategoryError] }

// IncludeRouter attaches a child. A router may have at most one parent;
// attaching it a second time panics immediately, since a diamond or cyclic
// propagation graph is a programming error, not a runtime condition.
func (r *Router) IncludeRouter(child *Router) {
	if child == r {
		panic(fmt.Sprintf("router %q cannot include itself", r.name))
	}

	if child.parent != nil {
		panic(fmt.Sprintf(
			"router %q is already attached to %q, cannot attach to %q",
			child.name, child.parent.name, r.name,
		))
	}

	child.parent = r
	r.children = append(r.children, child)
}

// IncludeRouters is the bulk form of IncludeRouter.
func (r *Router) IncludeRouters(children ...*Router) {
	for _, child := range children {
		r.IncludeRouter(child)
	}
}

// OnStartup registers a hook fired before polling begins, root-first
// depth-first across the tree.
func (r *Router) OnStartup(hook LifecycleHook) {
	r.startupHooks = append(r.startupHooks, hook)
}

// OnShutdown registers a hook fired after polling stops, in the same order
// as startup.
func (r *Router) OnShutdown(hook LifecycleHook) {
	r.shutdownHooks = append(r.shutdownHooks, hook)
}

// EmitStartup runs this router's startup hooks in registration order, then
// recurses into children in registration order.
func (r *Router) EmitStartup(ctx context.Context) error {
	for _, hook := range r.startupHooks {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	for _, child := range r.children {
		if err := child.EmitStartup(ctx); err != nil {
			return err
		}
	}

	return nil
}

// EmitShutdown runs this router's shutdown hooks, then recurses into
// children.
func (r *Router) EmitShutdown(ctx context.Context) error {
	for _, hook := range r.shutdownHooks {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	for _, child := range r.children {
		if err := child.EmitShutdown(ctx); err != nil {
			return err
		}
	}

	return nil
}

// PropagateEvent walks the subtree depth-first, local handlers first: this
// router's own observer is triggered, and only when it yields Unhandled are
// child routers tried in registration order, each applying its own middleware
// independently. The first non-Unhandled result wins. Unrecognized categories
// yield Unhandled immediately.
func (r *Router) PropagateEvent(
	ctx context.Context,
	category Category,
	event yatypes.Event,
	data *Data,
) (any, error) {
	observer, ok := r.observers[category]
	if !ok {
		return Unhandled, nil
	}

	inner := func(ctx context.Context, event yatypes.Event, data *Data) (any, error) {
		result, err := observer.Trigger(ctx, event, data)
		if err != nil {
			return nil, err
		}

		if !IsUnhandled(result) {
			return result, nil
		}

		for _, child := range r.children {
			result, err := child.PropagateEvent(ctx, category, event, data)
			if err != nil {
				return nil, err
			}

			if !IsUnhandled(result) {
				return result, nil
			}
		}

		return Unhandled, nil
	}

	return observer.wrapOuter(inner)(ctx, event, data)
}
