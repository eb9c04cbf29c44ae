package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/locker"
	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"github.com/taoyao-code/locker-gateway/internal/serialport"
)

var (
	portName  string
	baudRate  int
	address   uint8
	cellCount int
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "lockerctl",
	Short: "KZ004 locker diagnostics",
	Long: `lockerctl talks to a KZ004 locker board directly over the serial port,
bypassing the gateway. Stop the gateway first: the port allows one owner.

Examples:
  lockerctl ports
  lockerctl probe --port /dev/ttyUSB0
  lockerctl open 5 --port /dev/ttyUSB0
  lockerctl monitor --port /dev/ttyUSB0
  lockerctl monitor --url ws://localhost:8080/api/locker/events/ws`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate")
	rootCmd.PersistentFlags().Uint8VarP(&address, "address", "a", 1, "Board address")
	rootCmd.PersistentFlags().IntVar(&cellCount, "cells", 16, "Number of cells on the board")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every frame")
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// connect 打开串口并完成状态查询，调用方负责 Close
func connect(ctx context.Context, events chan<- cell.DoorEvent) (*locker.HardwareDriver, *cell.Registry, error) {
	if portName == "" {
		return nil, nil, fmt.Errorf("--port is required")
	}
	if address == 0 || address == kz004.BroadcastAddr {
		return nil, nil, fmt.Errorf("--address must be within [1,254]")
	}
	reg := cell.NewRegistry(cell.UniformLayout(cellCount))
	drv := locker.NewHardwareDriver(locker.HardwareConfig{
		Serial: serialport.Config{
			Port:             portName,
			BaudRate:         baudRate,
			InterByteTimeout: 100 * time.Millisecond,
		},
		Address: address,
	}, reg, events, locker.WithLogger(newLogger()))

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := drv.Connect(cctx); err != nil {
		return nil, nil, err
	}
	return drv, reg, nil
}
