package main

import (
	"context"
	"fmt"
	"os"

	"github.com/VladKovDev/raffle-bot/internal/app"
)

func main() {
	ctx := context.Background()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "raffle-bot: %v\n", err)
		os.Exit(1)
	}
}
