package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/taoyao-code/locker-gateway/internal/cell"
)

var monitorURL string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print door events until interrupted",
	Long: `Print door open/close transitions.

With --port the board is polled directly. With --url the events are read from
a running gateway's WebSocket stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if monitorURL != "" {
			return monitorGateway(ctx, monitorURL)
		}
		return monitorSerial(ctx)
	},
}

func printEvent(ev cell.DoorEvent) {
	state := "closed"
	if ev.DoorOpen {
		state = "opened"
	}
	fmt.Printf("%s  %-8s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.CellID, state)
}

func monitorSerial(ctx context.Context) error {
	events := make(chan cell.DoorEvent, 64)
	drv, _, err := connect(ctx, events)
	if err != nil {
		return err
	}
	defer drv.Close()
	fmt.Printf("monitoring %s (firmware %s), Ctrl-C to stop\n", portName, drv.Info().FirmwareVersion)

	errCh := make(chan error, 1)
	go func() { errCh <- drv.Run(ctx) }()
	for {
		select {
		case ev := <-events:
			printEvent(ev)
		case err := <-errCh:
			return err
		}
	}
}

func monitorGateway(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s, Ctrl-C to stop\n", url)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	for {
		var ev cell.DoorEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		printEvent(ev)
	}
}

func init() {
	monitorCmd.Flags().StringVar(&monitorURL, "url", "", "Gateway WebSocket URL")
	rootCmd.AddCommand(monitorCmd)
}
