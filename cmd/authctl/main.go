package main

import (
	"fmt"
	"os"

	tool "github.com/sandeepkv93/auth-token-lifecycle/internal/tools/authctl"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(tool.ExitCode(err))
	}
}
