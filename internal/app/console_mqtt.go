package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/buzzline/internal/config"
	"github.com/relabs-tech/buzzline/internal/telemetry"
)

var (
	frameColor = color.New(color.FgCyan)
	eventColor = color.New(color.FgGreen)
	stopColor  = color.New(color.FgRed, color.Bold)
	calColor   = color.New(color.FgYellow, color.Bold)
)

// PrintFrame writes one telemetry frame the way the serial link shows it.
func PrintFrame(w io.Writer, f telemetry.Frame) {
	frameColor.Fprintf(w, "[%s] %s  mem=%s  cmd=(%d,%d)\n",
		f.State, telemetry.FormatFrame(f), f.Memory, f.Command.Left, f.Command.Right)
}

// PrintEvent writes one progress event, highlighting stops and calibrations.
func PrintEvent(w io.Writer, e telemetry.Event) {
	c := eventColor
	switch e.Kind {
	case telemetry.KindStop:
		c = stopColor
	case telemetry.KindCalibration:
		c = calColor
	}
	c.Fprintf(w, "[%s] %s\n", e.Kind, e.Message)
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	if topic == "" {
		return nil
	}
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe %s", topic)
	}
	logrus.Infof("console: subscribed to %s", topic)
	return nil
}

// RunConsoleMQTT prints the follower telemetry until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, out io.Writer) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	if cfg.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is not set")
	}

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe(client, cfg.TopicFrames, func(_ mqtt.Client, msg mqtt.Message) {
		var f telemetry.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			logrus.Warnf("console: frame unmarshal error: %v", err)
			return
		}
		PrintFrame(out, f)
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicEvents, func(_ mqtt.Client, msg mqtt.Message) {
		var e telemetry.Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			logrus.Warnf("console: event unmarshal error: %v", err)
			return
		}
		PrintEvent(out, e)
	})
	if err != nil {
		return err
	}

	// retained, so a late console still learns the active calibration
	err = subscribe(client, cfg.TopicCalibration, func(_ mqtt.Client, msg mqtt.Message) {
		if !msg.Retained() {
			return
		}
		var e telemetry.Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil || e.Calibration == nil {
			return
		}
		calColor.Fprintf(out, "[calibration] threshold=%d line_is_dark=%v\n", e.Calibration.Threshold, e.Calibration.LineIsDark)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	fmt.Fprintln(out)
	logrus.Info("console: shutting down")
	return nil
}
