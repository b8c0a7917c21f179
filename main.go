// main is the entry point for the moze CLI.
package main

import (
	"os"

	"github.com/huangsam/moze/cmd"
	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/internal/evalstore"
)

func main() {
	cmd.SetStoreManager(evalstore.Manager)
	err := cmd.Execute()
	evalstore.CloseStores()
	if err != nil {
		contract.LogWarn("moze failed", err)
		os.Exit(1)
	}
}
