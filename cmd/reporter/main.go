package main

// ============================================================================
// murdock-reporter 入口點
// 所有邏輯都在 internal/cli
// ============================================================================

import (
	"fmt"
	"os"

	"github.com/ChuLiYu/murdock-reporter/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	os.Exit(cli.Execute())
}
