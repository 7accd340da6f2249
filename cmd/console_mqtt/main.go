package main

import (
	"context"
	"os"

	"github.com/relabs-tech/buzzline/internal/app"
)

func main() {
	app.Execute(app.Command("console_mqtt", "Print follower telemetry received over MQTT", func(ctx context.Context) error {
		return app.RunConsoleMQTT(ctx, os.Stdout)
	}))
}
