package transport

import (
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-aseba/asebalink"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// thymioVID/thymioPID are the USB identifiers of the Thymio-II's wired and
// wireless-dongle serial interfaces, matching thymio_serial_ports.py.
const (
	thymioVID       = "0617"
	thymioPIDWired  = "000A"
	thymioPIDWirele = "000C"
)

// serialReadTimeout matches the original's serial.Serial(port, timeout=1).
const serialReadTimeout = 1 * time.Second

// SerialPortInfo describes one candidate serial device for a Thymio
// connection.
type SerialPortInfo struct {
	Name      string
	IsUSB     bool
	VID, PID  string
}

// SerialOption configures Serial.
type SerialOption func(*serialConfig)

type serialConfig struct {
	port string
	baud int
}

// WithSerialPort selects an explicit device path. If omitted, Serial opens
// the first port returned by SerialPorts.
func WithSerialPort(port string) SerialOption {
	return func(c *serialConfig) { c.port = port }
}

// WithSerialBaud overrides the baud rate. Aseba's serial framing is
// baud-rate-independent at the application layer, so this rarely needs
// changing from the 115200 default.
func WithSerialBaud(baud int) SerialOption {
	return func(c *serialConfig) { c.baud = baud }
}

// Serial opens a serial connection to a Thymio-II, wrapping go.bug.st/serial.
func Serial(opts ...SerialOption) (asebalink.Transport, error) {
	cfg := &serialConfig{baud: 115200}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.port == "" {
		ports, err := SerialPorts()
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, asebalink.ErrNoSerialPort
		}
		cfg.port = defaultPortName(ports)
	}

	port, err := serial.Open(cfg.port, &serial.Mode{BaudRate: cfg.baud})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return &serialTransport{port: port}, nil
}

// defaultPortName picks the same candidate the original's
// serial_default_port does: the last match on Windows, the first elsewhere.
func defaultPortName(ports []SerialPortInfo) string {
	if runtime.GOOS == "windows" {
		return ports[len(ports)-1].Name
	}
	return ports[0].Name
}

// SerialPorts enumerates candidate Thymio serial devices: first by USB
// VID/PID, falling back to OS-specific name-prefix matching when no device
// matches by VID/PID, matching thymio_serial_ports.py.
func SerialPorts() ([]SerialPortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var byVIDPID []SerialPortInfo
	var byName []SerialPortInfo
	for _, d := range details {
		info := SerialPortInfo{Name: d.Name, IsUSB: d.IsUSB, VID: d.VID, PID: d.PID}
		if d.IsUSB && strings.EqualFold(d.VID, thymioVID) &&
			(strings.EqualFold(d.PID, thymioPIDWired) || strings.EqualFold(d.PID, thymioPIDWirele)) {
			byVIDPID = append(byVIDPID, info)
		}
		if matchesNamePrefix(d.Name) {
			byName = append(byName, info)
		}
	}
	if len(byVIDPID) > 0 {
		return byVIDPID, nil
	}
	return byName, nil
}

func matchesNamePrefix(name string) bool {
	switch runtime.GOOS {
	case "linux":
		return strings.Contains(name, "ttyACM")
	case "darwin":
		return strings.Contains(name, "cu.usb")
	case "windows":
		return strings.HasPrefix(name, "COM")
	default:
		return false
	}
}

type serialTransport struct {
	port   serial.Port
	closed atomic.Bool
}

func (t *serialTransport) Read(buf []byte) (int, error) {
	n, err := t.port.Read(buf)
	if err == nil && n == 0 {
		return 0, asebalink.ErrTransportTimeout
	}
	return n, err
}

func (t *serialTransport) Write(buf []byte) (int, error) {
	return t.port.Write(buf)
}

func (t *serialTransport) Close() error {
	t.closed.Store(true)
	return t.port.Close()
}

func (t *serialTransport) Closed() bool { return t.closed.Load() }
