package mpd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Handler runs one command and returns the response lines without the
// trailing OK
type Handler func(ctx context.Context, c *Context, args Args) ([]string, error)

// Coercer converts a raw argument into its typed value
type Coercer func(raw string) (any, error)

// Param describes one positional argument of a command
type Param struct {
	Name     string
	Coerce   Coercer
	Optional bool

	// Variadic consumes every remaining argument. Only the last param may
	// be variadic.
	Variadic bool
}

// Command is one entry of the command table
type Command struct {
	Name   string
	Params []Param
	Handle Handler

	// Public commands may run before the client has sent the password
	Public bool

	// Hidden commands are left out of the "commands" listing
	Hidden bool

	// NoBatch commands are refused inside a command list
	NoBatch bool
}

func (c *Command) arity() (least, most int) {
	for _, p := range c.Params {
		switch {
		case p.Variadic:
			if !p.Optional {
				least++
			}
			most = -1
		case p.Optional:
			if most >= 0 {
				most++
			}
		default:
			least++
			if most >= 0 {
				most++
			}
		}
	}
	return least, most
}

func (c *Command) coerce(raw []string) (Args, error) {
	least, most := c.arity()
	if len(raw) < least || (most >= 0 && len(raw) > most) {
		return nil, &AckError{Code: AckArg, Command: c.Name, Message: fmt.Sprintf("wrong number of arguments for %q", c.Name)}
	}

	args := make(Args, 0, len(raw))
	for i, value := range raw {
		p := c.Params[len(c.Params)-1]
		if i < len(c.Params) {
			p = c.Params[i]
		}
		if p.Coerce == nil {
			args = append(args, value)
			continue
		}
		v, err := p.Coerce(value)
		if err != nil {
			return nil, &AckError{Code: AckArg, Command: c.Name, Message: err.Error()}
		}
		args = append(args, v)
	}
	return args, nil
}

// Range is a half open span of positions. End is -1 when open ended.
type Range struct {
	Start int
	End   int
}

// Args holds coerced arguments in positional order
type Args []any

// Has reports whether argument i was given
func (a Args) Has(i int) bool {
	return i < len(a)
}

// String returns argument i, or "" when absent
func (a Args) String(i int) string {
	if !a.Has(i) {
		return ""
	}
	s, _ := a[i].(string)
	return s
}

// Strings returns the arguments from index from onwards as strings
func (a Args) Strings(from int) []string {
	if from >= len(a) {
		return nil
	}
	out := make([]string, 0, len(a)-from)
	for _, v := range a[from:] {
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}

// Int returns argument i, or def when absent
func (a Args) Int(i, def int) int {
	if !a.Has(i) {
		return def
	}
	n, _ := a[i].(int)
	return n
}

// Bool returns argument i, or def when absent
func (a Args) Bool(i int, def bool) bool {
	if !a.Has(i) {
		return def
	}
	b, _ := a[i].(bool)
	return b
}

// Float returns argument i, or def when absent
func (a Args) Float(i int, def float64) float64 {
	if !a.Has(i) {
		return def
	}
	f, _ := a[i].(float64)
	return f
}

// Range returns argument i, or an open range from 0 when absent
func (a Args) Range(i int) Range {
	if !a.Has(i) {
		return Range{Start: 0, End: -1}
	}
	r, _ := a[i].(Range)
	return r
}

// Int accepts any signed integer
func Int(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("Integer expected: %s", raw)
	}
	return n, nil
}

// Uint accepts non-negative integers
func Uint(raw string) (any, error) {
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return nil, fmt.Errorf("Only positive numbers are allowed")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("Number too large: %s", raw)
	}
	return n, nil
}

// Bool accepts "0" and "1"
func Bool(raw string) (any, error) {
	switch raw {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return nil, fmt.Errorf("Boolean (0/1) expected: %s", raw)
}

// Float accepts a decimal number
func Float(raw string) (any, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("Float expected: %s", raw)
	}
	return f, nil
}

// RangeArg accepts "N", "N:M" and "N:"
func RangeArg(raw string) (any, error) {
	start, stop, found := strings.Cut(raw, ":")
	s, err := Uint(start)
	if err != nil {
		return nil, err
	}
	if !found {
		return Range{Start: s.(int), End: s.(int) + 1}, nil
	}
	if strings.TrimSpace(stop) == "" {
		return Range{Start: s.(int), End: -1}, nil
	}
	e, err := Uint(stop)
	if err != nil {
		return nil, err
	}
	if s.(int) >= e.(int) {
		return nil, fmt.Errorf("Bad song index")
	}
	return Range{Start: s.(int), End: e.(int)}, nil
}

// Table maps command names to commands
type Table struct {
	commands map[string]*Command
}

// NewTable creates an empty command table
func NewTable() *Table {
	return &Table{commands: make(map[string]*Command)}
}

// Register adds commands. Registering a name twice is an error.
func (t *Table) Register(cmds ...*Command) error {
	for _, c := range cmds {
		if _, exists := t.commands[c.Name]; exists {
			return fmt.Errorf("command %q already registered", c.Name)
		}
		for i, p := range c.Params {
			if p.Variadic && i != len(c.Params)-1 {
				return fmt.Errorf("command %q: only the last parameter may be variadic", c.Name)
			}
		}
		t.commands[c.Name] = c
	}
	return nil
}

// Lookup returns the named command, or nil
func (t *Table) Lookup(name string) *Command {
	return t.commands[name]
}

// Names returns all command names in sorted order
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call resolves tokens[0], coerces the remaining tokens and runs the handler
func (t *Table) Call(ctx context.Context, c *Context, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, newAck(AckUnknown, "No command given")
	}
	cmd := t.Lookup(tokens[0])
	if cmd == nil {
		return nil, UnknownCommandError(tokens[0])
	}
	args, err := cmd.coerce(tokens[1:])
	if err != nil {
		return nil, err
	}

	lines, err := cmd.Handle(ctx, c, args)
	if err != nil {
		ack := ackFromError(err)
		if ack.Command == "" && !ack.unscoped {
			ack.Command = cmd.Name
		}
		return nil, ack
	}
	return lines, nil
}

// NewDefaultTable returns a table holding every supported command
func NewDefaultTable() *Table {
	t := NewTable()
	groups := [][]*Command{
		connectionCommands(),
		statusCommands(),
		playbackCommands(),
		tracklistCommands(),
		storedPlaylistCommands(),
		libraryCommands(),
		reflectionCommands(),
		outputCommands(),
		commandListCommands(),
	}
	for _, g := range groups {
		if err := t.Register(g...); err != nil {
			panic(err)
		}
	}
	return t
}
