package mpd

import (
	"context"
	"errors"
	"strings"

	"github.com/austinkregel/local-media/mpdd/internal/auth"
)

func connectionCommands() []*Command {
	return []*Command{
		{Name: "close", Public: true, Handle: handleClose},
		{Name: "kill", Handle: handleKill},
		{Name: "password", Public: true, Params: []Param{{Name: "password"}}, Handle: handlePassword},
		{Name: "ping", Public: true, Handle: handlePing},
		{Name: "binarylimit", Params: []Param{{Name: "size", Coerce: Uint}}, Handle: handlePing},
		{Name: "tagtypes", Params: []Param{{Name: "args", Optional: true, Variadic: true}}, Handle: handleTagTypes},
	}
}

func handleClose(ctx context.Context, c *Context, args Args) ([]string, error) {
	c.Close()
	return nil, nil
}

func handleKill(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, PermissionError("kill")
}

func handlePassword(ctx context.Context, c *Context, args Args) ([]string, error) {
	err := c.Auth.Check(c.Host, args.String(0))
	switch {
	case err == nil:
		c.Dispatcher.SetAuthenticated()
		return nil, nil
	case errors.Is(err, auth.ErrLockedOut):
		c.logger.Warn("password attempts locked out", "host", c.Host)
		return nil, newAck(AckPassword, "too many failed attempts, try again later")
	default:
		c.logger.Info("incorrect password", "host", c.Host)
		return nil, newAck(AckPassword, "incorrect password")
	}
}

func handlePing(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, nil
}

func canonicalTagType(name string) (string, bool) {
	for _, t := range tagTypes {
		if strings.EqualFold(t, name) {
			return t, true
		}
	}
	return "", false
}

func handleTagTypes(ctx context.Context, c *Context, args Args) ([]string, error) {
	words := args.Strings(0)
	if len(words) == 0 {
		var lines []string
		for _, t := range tagTypes {
			if c.tagTypes[t] {
				lines = append(lines, "tagtype: "+t)
			}
		}
		return lines, nil
	}

	switch sub, names := words[0], words[1:]; sub {
	case "all":
		for _, t := range tagTypes {
			c.tagTypes[t] = true
		}
	case "clear":
		c.tagTypes = make(map[string]bool, len(tagTypes))
	case "enable", "disable":
		if len(names) == 0 {
			return nil, ArgError("Not enough arguments")
		}
		canonical := make([]string, 0, len(names))
		for _, n := range names {
			t, ok := canonicalTagType(n)
			if !ok {
				return nil, ArgError("Unknown tag type: %s", n)
			}
			canonical = append(canonical, t)
		}
		for _, t := range canonical {
			c.tagTypes[t] = sub == "enable"
		}
	default:
		return nil, ArgError("Unknown sub command")
	}
	return nil, nil
}
