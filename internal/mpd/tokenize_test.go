package mpd

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"play", []string{"play"}},
		{"play   ", []string{"play"}},
		{"play 1", []string{"play", "1"}},
		{"add \"foo bar\"", []string{"add", "foo bar"}},
		{`add "a\"b"`, []string{"add", `a"b`}},
		{`add "a\\b"`, []string{"add", `a\b`}},
		{`add a\b`, []string{"add", `a\b`}},
		{`find artist "" album x`, []string{"find", "artist", "", "album", "x"}},
		{"setvol\t50", []string{"setvol", "50"}},
		{"replay_gain_mode off", []string{"replay_gain_mode", "off"}},
		{"add ÆØÅ", []string{"add", "ÆØÅ"}},
	}

	for _, tt := range tests {
		got, err := Split(tt.line)
		if err != nil {
			t.Errorf("Split(%q) failed: %v", tt.line, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		line    string
		code    AckCode
		command string
		message string
	}{
		{"", AckUnknown, "", "No command given"},
		{"   ", AckUnknown, "", "No command given"},
		{" play", AckUnknown, "", "Letter expected"},
		{"PLAY", AckUnknown, "", "Invalid word character"},
		{"pl@y", AckUnknown, "", "Invalid word character"},
		{"1play", AckUnknown, "", "Invalid word character"},
		{`add "foo"bar`, AckArg, "add", "Space expected after closing quote"},
		{`add "foo`, AckArg, "add", "Missing closing quote"},
		{`add "foo\`, AckArg, "add", "Missing closing quote"},
		{`add "`, AckArg, "add", "Missing closing quote"},
		{`add x "`, AckArg, "add", "Missing closing quote"},
		{`add 'foo'`, AckArg, "add", "Invalid unquoted character"},
		{`add foo"bar`, AckArg, "add", "Invalid unquoted character"},
	}

	for _, tt := range tests {
		_, err := Split(tt.line)
		var ack *AckError
		if !errors.As(err, &ack) {
			t.Errorf("Split(%q): expected AckError, got %v", tt.line, err)
			continue
		}
		if ack.Code != tt.code || ack.Command != tt.command || ack.Message != tt.message {
			t.Errorf("Split(%q) = [%d] {%s} %s, want [%d] {%s} %s",
				tt.line, ack.Code, ack.Command, ack.Message, tt.code, tt.command, tt.message)
		}
	}
}

func TestJoinSplitRoundTrip(t *testing.T) {
	args := [][]string{
		{"plain"},
		{"with space", "x"},
		{`quote"inside`, `back\slash`},
		{""},
		{"tab\there", "new\nline"},
	}
	for _, a := range args {
		line := Join("find", a...)
		got, err := Split(line)
		if err != nil {
			t.Errorf("Split(Join(%q)) failed: %v", a, err)
			continue
		}
		if !reflect.DeepEqual(got[1:], a) {
			t.Errorf("Round trip of %q gave %q", a, got[1:])
		}
	}
}
