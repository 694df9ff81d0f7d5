package yafsm

import (
	"context"

	"github.com/YaCodeDev/GoVKTeamsBot/yaerrors"
)

// DefaultDestiny is the destiny discriminator used when the application does
// not ask for an independent state slot.
const DefaultDestiny = "default"

// NoState is the state value meaning "no state". A record holding NoState and
// an empty data bag is indistinguishable from one that was never touched.
const NoState = ""

// StorageKey identifies one FSM record. It is comparable and used directly
// as a map key by the in-memory backend and the dispatcher's session
// timestamps.
type StorageKey struct {
	BotID   string
	ChatID  string
	UserID  string
	Destiny string
}

// Storage is the pluggable FSM persistence contract. Backends may give state
// and data independent expiry policies, but a cleared record must always
// read back as NoState plus an empty data bag.
//
// Data maps are copy-in/copy-out: mutating a map passed to SetData or
// returned from GetData must never affect what the storage holds.
type Storage interface {
	SetState(ctx context.Context, key StorageKey, state string) yaerrors.Error
	GetState(ctx context.Context, key StorageKey) (string, yaerrors.Error)
	SetData(ctx context.Context, key StorageKey, data map[string]any) yaerrors.Error
	GetData(ctx context.Context, key StorageKey) (map[string]any, yaerrors.Error)
	Close() yaerrors.Error
}
