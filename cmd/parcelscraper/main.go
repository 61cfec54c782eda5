package main

import (
	"context"

	"parcelscraper/cmd/parcelscraper/commands"
	"parcelscraper/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext(context.Background()))
}
