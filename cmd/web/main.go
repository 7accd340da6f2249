// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/buzzline/internal/app"
)

func main() {
	app.Execute(app.Command("web", "Serve the follower dashboard from MQTT telemetry", app.RunWeb))
}
