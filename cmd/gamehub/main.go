// Command gamehub はGame Hubのエントリーポイント。
// サブコマンド: serve（デフォルト）, worker, migrate, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/gamehub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gamehub: %v\n", err)
		os.Exit(1)
	}
}
