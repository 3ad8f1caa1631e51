package main

import (
	"context"
	"log"

	"github.com/stake-plus/govcurator/src/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("curator: %v", err)
	}
}
