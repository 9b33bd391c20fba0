// Package main stockdesk 终端入口
package main

import (
	"fmt"
	"os"

	"github.com/run-bigpig/stockdesk/cmd"
)

// 构建信息，由 ldflags 注入
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd.SetVersion(fmt.Sprintf("%s (commit: %s)", version, commit))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
