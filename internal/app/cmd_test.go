package app

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "引数なしはserve", args: []string{}, want: CommandServe},
		{name: "nilはserve", args: nil, want: CommandServe},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "migrate", args: []string{"migrate"}, want: CommandMigrate},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "help", args: []string{"help"}, want: CommandHelp},
		{name: "--helpはhelp", args: []string{"--help"}, want: CommandHelp},
		{name: "追加の引数は無視", args: []string{"migrate", "--flag", "value"}, want: CommandMigrate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_Unknown(t *testing.T) {
	for _, arg := range []string{"worker", "Serve", "scan"} {
		_, err := ParseCommand([]string{arg})
		if !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseCommand(%q) error = %v, want ErrUnknownCommand", arg, err)
		}
	}
}

func TestWriteUsage_ListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	WriteUsage(&buf)

	out := buf.String()
	for _, cmd := range []Command{CommandServe, CommandMigrate, CommandHealthcheck, CommandHelp} {
		if !strings.Contains(out, "  "+string(cmd)+" ") {
			t.Errorf("usage should list %q, got:\n%s", cmd, out)
		}
	}
}

func TestRun_UnknownCommandPrintsUsage(t *testing.T) {
	var buf bytes.Buffer
	err := Run(&buf, []string{"worker"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Run(worker) error = %v, want ErrUnknownCommand", err)
	}
	if !strings.Contains(buf.String(), "Usage: homescan") {
		t.Errorf("usage should be written, got %q", buf.String())
	}
}

func TestRun_HelpSkipsInitialization(t *testing.T) {
	// DATABASE_URL未設定でもhelpは成功する
	t.Setenv("DATABASE_URL", "")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"help"}); err != nil {
		t.Fatalf("Run(help) error: %v", err)
	}
	if !strings.Contains(buf.String(), "migrate") {
		t.Errorf("usage should be written, got %q", buf.String())
	}
}
