package app

import (
	"errors"
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は認証APIとスキャンAPIを提供するHTTPサーバーを起動する。
	// SCAN_RETENTION_DAYSが設定されていれば保持期間ジョブも同じプロセスで動かす。
	CommandServe Command = "serve"
	// CommandMigrate はaccounts/scansテーブルのマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを叩き、DB到達性を含めて判定する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp はサブコマンドの一覧を出力する。
	CommandHelp Command = "help"
)

// ErrUnknownCommand はサポート外のサブコマンドが指定されたことを表す。
var ErrUnknownCommand = errors.New("unknown command")

var commandUsages = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the auth and scan API server (default)"},
	{CommandMigrate, "apply database migrations and exit"},
	{CommandHealthcheck, "check GET /health on the running server"},
	{CommandHelp, "show this help"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。サポート外のコマンドはErrUnknownCommandを返す。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	for _, u := range commandUsages {
		if string(u.cmd) == args[0] {
			return u.cmd, nil
		}
	}
	switch args[0] {
	case "-h", "--help":
		return CommandHelp, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, args[0])
}

// WriteUsage はサブコマンドの一覧をwに書き込む。
func WriteUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: homescan <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, u := range commandUsages {
		fmt.Fprintf(w, "  %-12s %s\n", u.cmd, u.desc)
	}
}
