package serialport

import "go.bug.st/serial"

// ListPorts 列出系统可用串口
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
