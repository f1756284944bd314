package model

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrUnknownMode is returned when a handler carries a CreateMode that
	// Compose does not know.
	ErrUnknownMode = errors.New("model: unknown create model mode")

	// ErrParamMismatch means two handlers do not share the same tensor
	// layout, which happens when nodes are built with different
	// architectures.
	ErrParamMismatch = errors.New("model: parameter mismatch")
)

// CreateMode selects how a handler combines a received model with its own.
type CreateMode int

// The supported create modes.
const (
	// ModeUpdate trains the received model on local data and adopts it.
	ModeUpdate CreateMode = iota
	// ModeMergeUpdate averages with the received model, then trains.
	ModeMergeUpdate
	// ModeUpdateMerge trains both models on local data, then averages.
	ModeUpdateMerge
	// ModePass adopts the received model as is.
	ModePass
)

var createModeNames = map[CreateMode]string{
	ModeUpdate:      "update",
	ModeMergeUpdate: "merge_update",
	ModeUpdateMerge: "update_merge",
	ModePass:        "pass",
}

func (m CreateMode) String() string {
	if name, ok := createModeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("CreateMode(%d)", int(m))
}

// ParseCreateMode converts a name such as "merge_update" into a CreateMode.
func ParseCreateMode(s string) (CreateMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range createModeNames {
		if name == s {
			return mode, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Handler wraps a trainable model.
//
// Implementations are exclusively owned by one node. Everything a handler
// receives from a peer is a Clone, never the peer's live object.
type Handler interface {
	// Init (re)initializes the weights and resets the update counter.
	Init(rng *rand.Rand)

	// Update performs one local training step on data.
	Update(data *Dataset) error

	// Merge averages this handler's parameters with other's.
	Merge(other Handler) error

	// Adopt replaces this handler's parameters and update counter with
	// copies of other's.
	Adopt(other Handler) error

	// Evaluate scores the model on data without changing it.
	Evaluate(data *Dataset) Metrics

	// Size returns the serialized byte size of the parameters.
	Size() int

	// Clone returns a deep copy.
	Clone() Handler

	// Mode returns the create mode used by Compose.
	Mode() CreateMode

	// Updates returns how many training steps this model has seen.
	Updates() int

	// Params exposes the parameter tensors. Callers must not modify them.
	Params() Params
}

// Compose folds a received handler into local using local's create mode.
// Each training step runs the handler's Update epochs times; epochs below 1
// count as 1. The received handler is trained in place in the update and
// update-merge modes, so it must be a private copy.
func Compose(local, recv Handler, data *Dataset, epochs int) error {
	switch local.Mode() {
	case ModeUpdate:
		if err := train(recv, data, epochs); err != nil {
			return err
		}

		return local.Adopt(recv)
	case ModeMergeUpdate:
		if err := local.Merge(recv); err != nil {
			return err
		}

		return train(local, data, epochs)
	case ModeUpdateMerge:
		if err := train(local, data, epochs); err != nil {
			return err
		}

		if err := train(recv, data, epochs); err != nil {
			return err
		}

		return local.Merge(recv)
	case ModePass:
		return local.Adopt(recv)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownMode, local.Mode())
	}
}

func train(h Handler, data *Dataset, epochs int) error {
	if epochs < 1 {
		epochs = 1
	}

	for i := 0; i < epochs; i++ {
		if err := h.Update(data); err != nil {
			return err
		}
	}

	return nil
}

// WithMode returns a view of h that composes with mode instead of its own.
// Nodes use it to switch to pass-through for a single receipt.
func WithMode(h Handler, mode CreateMode) Handler {
	return &modeOverride{Handler: h, mode: mode}
}

type modeOverride struct {
	Handler
	mode CreateMode
}

func (m *modeOverride) Mode() CreateMode {
	return m.mode
}

const bytesPerParam = 8
