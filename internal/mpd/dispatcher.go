package mpd

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/austinkregel/local-media/mpdd/internal/core"
)

// Dispatcher turns request lines into response lines for one connection.
// Every request passes the same stages in order: error capture,
// authentication, command list buffering, the idle gate, OK framing and
// finally the command handler.
type Dispatcher struct {
	table     *Table
	ctx       *Context
	blacklist map[string]bool

	authenticated bool

	listReceiving bool
	listVerbose   bool
	list          []string
	listIndex     int // position inside the batch being replayed, -1 outside

	subscriptions map[string]bool
	events        map[string]bool
}

// NewDispatcher binds a dispatcher to a connection context
func NewDispatcher(table *Table, c *Context) *Dispatcher {
	d := &Dispatcher{
		table:         table,
		ctx:           c,
		blacklist:     make(map[string]bool),
		listIndex:     -1,
		subscriptions: make(map[string]bool),
		events:        make(map[string]bool),
	}
	for _, name := range c.Options.CommandBlacklist {
		d.blacklist[name] = true
	}
	c.Dispatcher = d
	return d
}

// Authenticated reports whether the connection may run every command
func (d *Dispatcher) Authenticated() bool {
	return d.authenticated
}

// SetAuthenticated marks the connection as having sent the password
func (d *Dispatcher) SetAuthenticated() {
	d.authenticated = true
}

// Idle reports whether the client is waiting in idle
func (d *Dispatcher) Idle() bool {
	return len(d.subscriptions) > 0
}

// Handle runs one request line and returns the lines to send back, which
// may be none
func (d *Dispatcher) Handle(ctx context.Context, request string) []string {
	return d.handle(ctx, request, -1)
}

func (d *Dispatcher) handle(ctx context.Context, request string, index int) []string {
	previous := d.listIndex
	d.listIndex = index
	defer func() { d.listIndex = previous }()

	return d.catchErrors(ctx, request)
}

func (d *Dispatcher) catchErrors(ctx context.Context, request string) (response []string) {
	defer func() {
		if r := recover(); r != nil {
			d.ctx.logger.Error("command panicked", "request", request, "panic", r, "stack", string(debug.Stack()))
			ack := SystemError("%v", r)
			ack.Command = commandName(request)
			response = []string{d.ackLine(ack)}
		}
	}()

	lines, err := d.authenticate(ctx, request)
	if err != nil {
		return []string{d.ackLine(ackFromError(err))}
	}
	return lines
}

func (d *Dispatcher) ackLine(ack *AckError) string {
	if d.listIndex >= 0 {
		ack.Index = d.listIndex
	}
	return ack.Line()
}

func (d *Dispatcher) authenticate(ctx context.Context, request string) ([]string, error) {
	if d.authenticated {
		return d.commandList(ctx, request)
	}
	if !d.ctx.Auth.Required() {
		d.authenticated = true
		return d.commandList(ctx, request)
	}

	name := commandName(request)
	if cmd := d.table.Lookup(name); cmd != nil && cmd.Public {
		return d.commandList(ctx, request)
	}
	ack := PermissionError(name)
	ack.Command = name
	return nil, ack
}

func (d *Dispatcher) receivingList(request string) bool {
	return d.listReceiving && request != "command_list_end"
}

func (d *Dispatcher) processingList(request string) bool {
	return d.listIndex >= 0 && request != "command_list_end"
}

func (d *Dispatcher) commandList(ctx context.Context, request string) ([]string, error) {
	if d.receivingList(request) {
		d.list = append(d.list, request)
		return nil, nil
	}

	response, err := d.idle(ctx, request)
	if err != nil {
		return nil, err
	}
	if d.receivingList(request) || d.processingList(request) {
		if n := len(response); n > 0 && response[n-1] == "OK" {
			response = response[:n-1]
		}
	}
	return response, nil
}

func (d *Dispatcher) idle(ctx context.Context, request string) ([]string, error) {
	if d.Idle() && request != "noidle" {
		d.ctx.logger.Debug("closing connection, only noidle is allowed while idle", "request", request)
		d.ctx.Close()
		return nil, nil
	}
	if !d.Idle() && request == "noidle" {
		return nil, nil
	}

	response, err := d.addOK(ctx, request)
	if err != nil {
		return nil, err
	}
	if d.Idle() {
		return nil, nil
	}
	return response, nil
}

func (d *Dispatcher) addOK(ctx context.Context, request string) ([]string, error) {
	response, err := d.callHandler(ctx, request)
	if err != nil {
		return nil, err
	}
	if n := len(response); n == 0 || !strings.HasPrefix(response[n-1], "ACK") {
		response = append(response, "OK")
	}
	return response, nil
}

func (d *Dispatcher) callHandler(ctx context.Context, request string) ([]string, error) {
	tokens, err := Split(request)
	if err != nil {
		return nil, err
	}
	name := tokens[0]
	if d.blacklist[name] {
		ack := SystemError("%q has been disabled in the server", name)
		ack.Command = name
		return nil, ack
	}
	if cmd := d.table.Lookup(name); cmd != nil && cmd.NoBatch && d.listIndex >= 0 {
		return nil, &AckError{Code: AckNotList, Command: name, Message: fmt.Sprintf("%q is not allowed in a command list", name)}
	}
	return d.table.Call(ctx, d.ctx, tokens)
}

// HandleIdle records a changed subsystem. If the client is idling on it
// the returned lines end the idle and must be sent to the client.
func (d *Dispatcher) HandleIdle(subsystem string) []string {
	d.events[subsystem] = true
	active := d.activeSubsystems()
	if len(active) == 0 {
		return nil
	}
	response := changedLines(active)
	response = append(response, "OK")
	d.subscriptions = make(map[string]bool)
	d.events = make(map[string]bool)
	return response
}

func (d *Dispatcher) activeSubsystems() []string {
	var active []string
	for _, s := range core.Subsystems {
		if d.subscriptions[s] && d.events[s] {
			active = append(active, s)
		}
	}
	return active
}

// subscribe starts idling on subsystems. It returns the changed lines at
// once when one of them already has pending events.
func (d *Dispatcher) subscribe(subsystems []string) []string {
	for _, s := range subsystems {
		d.subscriptions[s] = true
	}
	active := d.activeSubsystems()
	if len(active) == 0 {
		return nil
	}
	d.subscriptions = make(map[string]bool)
	d.events = make(map[string]bool)
	return changedLines(active)
}

// unsubscribe ends an idle without reporting anything
func (d *Dispatcher) unsubscribe() {
	d.subscriptions = make(map[string]bool)
	d.events = make(map[string]bool)
}

// runList replays the buffered command list as one core transaction
func (d *Dispatcher) runList(ctx context.Context) ([]string, error) {
	list, verbose := d.list, d.listVerbose
	d.list, d.listVerbose, d.listReceiving = nil, false, false

	var response []string
	err := d.ctx.Core.Do(ctx, func(ctx context.Context) error {
		for i, request := range list {
			response = append(response, d.handle(ctx, request, i)...)
			if n := len(response); n > 0 && strings.HasPrefix(response[n-1], "ACK") {
				return nil
			}
			if verbose {
				response = append(response, "list_OK")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func changedLines(subsystems []string) []string {
	lines := make([]string, 0, len(subsystems))
	for _, s := range subsystems {
		lines = append(lines, "changed: "+s)
	}
	return lines
}

func commandName(request string) string {
	name, _, _ := strings.Cut(request, " ")
	return name
}
