package yafsm

import (
	"context"
	"maps"

	"github.com/YaCodeDev/GoVKTeamsBot/yaerrors"
)

// Context is the per-event FSM façade handed to handlers. It binds a Storage
// to the key resolved for the current event, so handlers never deal with keys
// themselves.
//
// Example:
//
//	fsm.SetState(ctx, form.NewState("confirm"))
//
//	data, _ := fsm.UpdateData(ctx, map[string]any{"product": "tea"})
type Context struct {
	storage Storage
	key     StorageKey
}

// NewContext binds a storage to a resolved key.
func NewContext(storage Storage, key StorageKey) *Context {
	return &Context{storage: storage, key: key}
}

// Key returns the storage key this context is bound to.
func (c *Context) Key() StorageKey {
	return c.key
}

// SetState stores the canonical form of the given state.
func (c *Context) SetState(ctx context.Context, state State) yaerrors.Error {
	return c.storage.SetState(ctx, c.key, state.String())
}

// SetStateName stores a raw state string. Passing NoState removes the state.
func (c *Context) SetStateName(ctx context.Context, state string) yaerrors.Error {
	return c.storage.SetState(ctx, c.key, state)
}

// GetState returns the current state string, or NoState when unset.
func (c *Context) GetState(ctx context.Context) (string, yaerrors.Error) {
	return c.storage.GetState(ctx, c.key)
}

// SetData replaces the whole data bag.
func (c *Context) SetData(ctx context.Context, data map[string]any) yaerrors.Error {
	return c.storage.SetData(ctx, c.key, data)
}

// GetData returns a copy of the data bag; mutating it does not affect the
// stored record.
func (c *Context) GetData(ctx context.Context) (map[string]any, yaerrors.Error) {
	return c.storage.GetData(ctx, c.key)
}

// UpdateData merges the given entries into the data bag and returns the
// merged result. Existing keys are overwritten, missing ones are kept.
func (c *Context) UpdateData(
	ctx context.Context,
	update map[string]any,
) (map[string]any, yaerrors.Error) {
	data, err := c.storage.GetData(ctx, c.key)
	if err != nil {
		return nil, err.Wrap("failed to load data for update")
	}

	maps.Copy(data, update)

	if err := c.storage.SetData(ctx, c.key, data); err != nil {
		return nil, err.Wrap("failed to store merged data")
	}

	return data, nil
}

// Clear removes both state and data, leaving the record as if it never
// existed.
func (c *Context) Clear(ctx context.Context) yaerrors.Error {
	if err := c.storage.SetState(ctx, c.key, NoState); err != nil {
		return err.Wrap("failed to clear state")
	}

	if err := c.storage.SetData(ctx, c.key, map[string]any{}); err != nil {
		return err.Wrap("failed to clear data")
	}

	return nil
}
