package main

import (
	"context"
	"os"
)

// main 是 plugind 的入口。
func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
