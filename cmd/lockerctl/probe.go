package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/locker"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Query board status and door states",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, reg, err := connect(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer drv.Close()

		info := drv.Info()
		fmt.Printf("Port:     %s @ %d\n", portName, baudRate)
		fmt.Printf("Address:  0x%02X\n", info.Address)
		fmt.Printf("Firmware: %s\n\n", info.FirmwareVersion)

		if err := drv.Poller().PollOnce(cmd.Context()); err != nil {
			return fmt.Errorf("door status: %w", err)
		}
		printDoors(reg)
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <cell>",
	Short: "Open one cell by number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > cellCount {
			return fmt.Errorf("cell must be 1..%d", cellCount)
		}
		drv, _, err := connect(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer drv.Close()

		if err := drv.OpenCell(cmd.Context(), n); err != nil {
			return err
		}
		fmt.Printf("%s opened\n", cell.IDFor(n))
		return nil
	},
}

var ledColor string

var ledCmd = &cobra.Command{
	Use:   "led <cell>",
	Short: "Set a cell indicator color",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > cellCount {
			return fmt.Errorf("cell must be 1..%d", cellCount)
		}
		color, err := locker.ParseLEDColor(ledColor)
		if err != nil {
			return err
		}
		drv, _, err := connect(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer drv.Close()
		return drv.SetLED(cmd.Context(), n, color)
	},
}

func printDoors(reg *cell.Registry) {
	for _, c := range reg.List() {
		state := "closed"
		if c.DoorOpen {
			state = "OPEN"
		}
		fmt.Printf("  %-8s %-2s %s\n", c.ID, c.Size, state)
	}
}

func init() {
	ledCmd.Flags().StringVar(&ledColor, "color", "green", "off|green|red|blue|blink")
	rootCmd.AddCommand(probeCmd, openCmd, ledCmd)
}
