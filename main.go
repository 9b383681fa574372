package main

import (
	"log"

	"github.com/shouni/go-site-crawler/cmd"
)

// main 関数は、ルートコマンドを実行し、エラーが発生した場合は log.Fatalf でアプリケーションを終了させます。
func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("アプリケーションエラー: %v", err)
	}
}
