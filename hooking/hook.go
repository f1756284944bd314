// Package hooking lets observers attach to a running simulation without the
// simulation knowing who is listening.
package hooking

import "reflect"

// HookPos names a point in the simulation where hooks are called.
// Positions are compared by pointer, so every position is a package-level
// variable of the package that raises it.
type HookPos struct {
	Name string
}

// HookCtx describes one hook call.
type HookCtx struct {
	// Domain raised the hook.
	Domain Hookable

	// Pos is where the hook was raised.
	Pos *HookPos

	// Item is the subject of the call, for example a message or a round
	// evaluation. Each position documents its type.
	Item any

	// Detail is extra data, such as the tick of a message event. Most
	// positions leave it nil.
	Detail any
}

// Hookable is anything observers can attach to.
type Hookable interface {
	// AcceptHook registers a hook. Hooks must be registered before the
	// domain starts running.
	AcceptHook(hook Hook)

	// NumHooks returns the number of registered hooks.
	NumHooks() int

	// Hooks returns the registered hooks in registration order.
	Hooks() []Hook

	// InvokeHook calls every registered hook with ctx.
	InvokeHook(ctx HookCtx)
}

// Hook is called synchronously from the simulation goroutine. It must not
// block on the simulation it observes.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps a hook list for types that embed it.
type HookableBase struct {
	hookList []Hook
}

// NewHookableBase creates a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// NumHooks returns the number of registered hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers hook. Registering the same hook value twice panics.
// Hooks of uncomparable types, such as HookFunc, are never considered
// duplicates.
func (h *HookableBase) AcceptHook(hook Hook) {
	if reflect.TypeOf(hook).Comparable() {
		for _, registered := range h.hookList {
			if reflect.TypeOf(registered) == reflect.TypeOf(hook) &&
				registered == hook {
				panic("duplicated hook")
			}
		}
	}

	h.hookList = append(h.hookList, hook)
}

// InvokeHook calls the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
