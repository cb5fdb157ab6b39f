package mpd

import (
	"context"
	"sort"
)

// decoderSuffixes are the file types the ffmpeg decoder is asked to play
var decoderSuffixes = []string{"aac", "flac", "m4a", "mp3", "ogg", "opus", "wav", "wma"}

func reflectionCommands() []*Command {
	return []*Command{
		{Name: "commands", Public: true, Handle: handleCommands},
		{Name: "notcommands", Public: true, Handle: handleNotCommands},
		{Name: "urlhandlers", Handle: handleURLHandlers},
		{Name: "decoders", Handle: handleDecoders},
	}
}

// permitted reports whether the connection may currently run cmd
func permitted(c *Context, cmd *Command) bool {
	return c.Dispatcher.Authenticated() || cmd.Public || !c.Auth.Required()
}

func handleCommands(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	for _, name := range c.Dispatcher.table.Names() {
		cmd := c.Dispatcher.table.Lookup(name)
		if cmd.Hidden || name == "kill" || !permitted(c, cmd) {
			continue
		}
		lines = append(lines, "command: "+name)
	}
	return lines, nil
}

func handleNotCommands(ctx context.Context, c *Context, args Args) ([]string, error) {
	names := []string{"kill"}
	for _, name := range c.Dispatcher.table.Names() {
		cmd := c.Dispatcher.table.Lookup(name)
		if cmd.Hidden || name == "kill" || permitted(c, cmd) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "command: "+name)
	}
	return lines, nil
}

func handleURLHandlers(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	for _, scheme := range c.Core.Library.URISchemes() {
		lines = append(lines, "handler: "+scheme+"://")
	}
	return lines, nil
}

func handleDecoders(ctx context.Context, c *Context, args Args) ([]string, error) {
	lines := []string{"plugin: ffmpeg"}
	for _, s := range decoderSuffixes {
		lines = append(lines, "suffix: "+s)
	}
	return lines, nil
}

func outputCommands() []*Command {
	output := []Param{{Name: "outputid", Coerce: Uint}}
	return []*Command{
		{Name: "outputs", Handle: handleOutputs},
		{Name: "enableoutput", Params: output, Handle: setOutput(func(bool) bool { return true })},
		{Name: "disableoutput", Params: output, Handle: setOutput(func(bool) bool { return false })},
		{Name: "toggleoutput", Params: output, Handle: setOutput(func(muted bool) bool { return !muted })},
	}
}

// Output 0 is a virtual "Mute" output; enabling it mutes the mixer
func handleOutputs(ctx context.Context, c *Context, args Args) ([]string, error) {
	return []string{
		"outputid: 0",
		"outputname: Mute",
		"outputenabled: " + boolDigit(c.Core.Mixer.Mute()),
	}, nil
}

func setOutput(next func(muted bool) bool) Handler {
	return func(ctx context.Context, c *Context, args Args) ([]string, error) {
		if args.Int(0, 0) != 0 {
			return nil, NoExistError("No such audio output")
		}
		c.Core.Mixer.SetMute(next(c.Core.Mixer.Mute()))
		return nil, nil
	}
}

func commandListCommands() []*Command {
	return []*Command{
		{Name: "command_list_begin", Hidden: true, NoBatch: true, Handle: beginCommandList(false)},
		{Name: "command_list_ok_begin", Hidden: true, NoBatch: true, Handle: beginCommandList(true)},
		{Name: "command_list_end", Hidden: true, Handle: handleCommandListEnd},
	}
}

func beginCommandList(verbose bool) Handler {
	return func(ctx context.Context, c *Context, args Args) ([]string, error) {
		d := c.Dispatcher
		d.listReceiving = true
		d.listVerbose = verbose
		d.list = nil
		return nil, nil
	}
}

func handleCommandListEnd(ctx context.Context, c *Context, args Args) ([]string, error) {
	if !c.Dispatcher.listReceiving {
		return nil, UnknownCommandError("command_list_end")
	}
	return c.Dispatcher.runList(ctx)
}
