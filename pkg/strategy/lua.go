package strategy

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Lua is a strategy scripted in Lua. The script must define
//
//	function classify(text) -> number in [0,1]
//
// returning the spam probability of text, and may optionally define
// train(category, text), untrain(category, text) and reset() to keep
// script-local state. Scripts are plain data files selected through the
// "lua" strategy kind; no Go code is loaded dynamically.
type Lua struct {
	mu    sync.Mutex
	state *lua.LState
	path  string
}

// NewLua loads the script and verifies it defines classify.
func NewLua(scriptPath string) (*Lua, error) {
	state := lua.NewState()

	if err := state.DoFile(scriptPath); err != nil {
		state.Close()
		return nil, fmt.Errorf("lua script %s: %w", scriptPath, err)
	}

	if state.GetGlobal("classify").Type() != lua.LTFunction {
		state.Close()
		return nil, fmt.Errorf("lua script %s: missing classify function", scriptPath)
	}

	return &Lua{
		state: state,
		path:  scriptPath,
	}, nil
}

func (l *Lua) Train(ctx context.Context, category, text string) error {
	return l.callOptional("train", lua.LString(category), lua.LString(text))
}

func (l *Lua) Untrain(ctx context.Context, category, text string) error {
	return l.callOptional("untrain", lua.LString(category), lua.LString(text))
}

func (l *Lua) Classify(ctx context.Context, text string) (Scores, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fn := l.state.GetGlobal("classify")
	if err := l.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(text)); err != nil {
		return nil, fmt.Errorf("lua classify: %w", err)
	}

	ret := l.state.Get(-1)
	l.state.Pop(1)

	number, ok := ret.(lua.LNumber)
	if !ok {
		return nil, fmt.Errorf("lua classify: expected number, got %s", ret.Type())
	}

	score := float64(number)
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("lua classify: score %v out of [0,1]", score)
	}

	return Scores{
		CategorySpam: score,
		CategoryHam:  1 - score,
	}, nil
}

func (l *Lua) Reset(ctx context.Context) error {
	return l.callOptional("reset")
}

// Close shuts the Lua VM down.
func (l *Lua) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Close()
	return nil
}

func (l *Lua) callOptional(name string, args ...lua.LValue) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fn := l.state.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}

	if err := l.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		return fmt.Errorf("lua %s: %w", name, err)
	}

	return nil
}

var _ Strategy = (*Lua)(nil)
