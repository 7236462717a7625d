package app

import (
	"fmt"
	"strings"
)

// Command はgamehubバイナリのサブコマンドを表す。
type Command string

const (
	// CommandServe はカタログサイトのWebサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの定期削除を実行する。
	CommandWorker Command = "worker"
	// CommandMigrate はsessionsテーブルのマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中サーバーの/healthを確認する。
	// distrolessイメージにはcurlがないためDockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp はサブコマンドの一覧を表示する。
	CommandHelp Command = "help"
)

// commands はUsageに表示する順序を兼ねる。
var commands = []struct {
	cmd         Command
	description string
}{
	{CommandServe, "start the catalog web server (default)"},
	{CommandWorker, "delete expired browser sessions periodically (requires DATABASE_URL)"},
	{CommandMigrate, "apply session store migrations (requires DATABASE_URL)"},
	{CommandHealthcheck, "check /health of a running server on SERVER_PORT"},
	{CommandHelp, "show this message"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch arg := strings.TrimLeft(args[0], "-"); arg {
	case "h":
		return CommandHelp
	default:
		for _, c := range commands {
			if string(c.cmd) == arg {
				return c.cmd
			}
		}
		return CommandServe
	}
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("Usage: gamehub [command]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.description)
	}
	return b.String()
}
