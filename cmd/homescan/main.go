// Command homescan はHomeScanのAPIサーバーを起動する。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（デフォルト）
//	migrate      データベースマイグレーションを適用する
//	healthcheck  ローカルの/healthを確認する（コンテナのヘルスチェック用）
//	help         サブコマンドの一覧を表示する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/homescan/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
