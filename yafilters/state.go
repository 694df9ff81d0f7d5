package yafilters

import (
	"context"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yafsm"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// StateEq matches when the resolved FSM state equals the given State's
// canonical string.
func StateEq(state yafsm.State) yadispatcher.Filter {
	return StateName(state.String())
}

// StateName matches the resolved FSM state against a raw state string.
// Passing yafsm.NoState makes it equivalent to NoState.
func StateName(state string) yadispatcher.Filter {
	return func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (bool, error) {
		return data.CurrentState == state, nil
	}
}

// StateIn matches when the resolved FSM state belongs to the group.
func StateIn(group *yafsm.StatesGroup) yadispatcher.Filter {
	return func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (bool, error) {
		return group.Contains(data.CurrentState), nil
	}
}

// AnyState matches whenever some FSM state is set.
func AnyState() yadispatcher.Filter {
	return func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (bool, error) {
		return data.CurrentState != yafsm.NoState, nil
	}
}

// NoState matches contextless events and conversations with no state set.
func NoState() yadispatcher.Filter {
	return func(_ context.Context, _ yatypes.Event, data *yadispatcher.Data) (bool, error) {
		return data.CurrentState == yafsm.NoState, nil
	}
}
