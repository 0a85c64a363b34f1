package daq

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the standard baud rate of the sampling firmware.
	DefaultBaudRate = 115200
	// DefaultLineBuffer is the number of received lines buffered by the reader.
	DefaultLineBuffer = 1024

	commandTimeout = time.Second
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial drives the burst-sampling firmware over a serial line.
//
// Protocol (one command or reply per line):
//
//	host:   RESET                                    device: OK
//	host:   START <V|I> <first> <count> <rate> <n>   device: OK, then n lines
//	device: D <v0>,<v1>,...                          one scan, volts
//	device: END <scans>                              acquisition finished
//	device: ERR <code>                               acquisition failed
//	host:   STOP                                     device: OK
type Serial struct {
	taskTable

	port     string
	baudRate int

	mu        sync.Mutex // Serializes commands
	conn      io.ReadWriteCloser
	lines     chan string
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// Ensure Serial implements Driver.
var _ Driver = (*Serial)(nil)

// NewSerial creates a serial driver for the given port. The port is opened
// by Connect.
func NewSerial(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{port: port, baudRate: baudRate}
}

// Connect opens the serial port and starts reading lines.
func (d *Serial) Connect() error {
	conn, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	return d.attach(conn)
}

// attach starts reading lines from an already opened connection.
func (d *Serial) attach(conn io.ReadWriteCloser) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	d.conn = conn
	d.lines = make(chan string, DefaultLineBuffer)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.connected = true

	go d.readLines(d.ctx, conn, d.lines)

	return nil
}

// Close closes the connection and stops reading lines.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()
	if err := d.conn.Close(); err != nil {
		log.Printf("Error closing serial port: %v", err)
	}
	d.conn = nil
	d.connected = false

	return nil
}

// readLines reads lines from the serial port until it is closed.
func (d *Serial) readLines(ctx context.Context, conn io.Reader, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("Error reading from serial port: %v", err)
	}
}

// send writes one command line. Caller holds d.mu.
func (d *Serial) send(cmd string) Status {
	if !d.connected {
		return ErrDeviceNotFound
	}
	if _, err := io.WriteString(d.conn, cmd+"\n"); err != nil {
		log.Printf("Failed to send %q: %v", cmd, err)
		return ErrDeviceIO
	}
	return StatusOK
}

// receive waits for the next line. Caller holds d.mu.
func (d *Serial) receive(timeout time.Duration) (string, Status) {
	select {
	case line, ok := <-d.lines:
		if !ok {
			return "", ErrDeviceIO
		}
		return line, StatusOK
	case <-time.After(timeout):
		return "", ErrReadTimeout
	}
}

// drain discards lines left over from a previous acquisition. Caller holds d.mu.
func (d *Serial) drain() {
	for {
		select {
		case _, ok := <-d.lines:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// command sends cmd and waits for OK, skipping stale data lines. Caller holds d.mu.
func (d *Serial) command(cmd string) Status {
	if code := d.send(cmd); code != StatusOK {
		return code
	}
	for {
		line, code := d.receive(commandTimeout)
		if code != StatusOK {
			return code
		}
		switch {
		case line == "OK":
			return StatusOK
		case strings.HasPrefix(line, "ERR"):
			return parseErrLine(line)
		}
	}
}

func (d *Serial) ResetDevice(device string) Status {
	if device == "" {
		return ErrDeviceNotFound
	}
	d.clearAll()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.drain()
	return d.command("RESET")
}

func (d *Serial) CreateTask(name string) (TaskHandle, Status) {
	return d.create(), StatusOK
}

func (d *Serial) CreateVoltageChannel(task TaskHandle, physical string, min, max float64) Status {
	return d.addChannel(task, physical, Voltage, min, max, 0)
}

func (d *Serial) CreateCurrentChannel(task TaskHandle, physical string, min, max, shunt float64) Status {
	return d.addChannel(task, physical, Current, min, max, shunt)
}

func (d *Serial) ConfigureClockTiming(task TaskHandle, rate float64, edge Edge, mode SampleMode, samplesPerChannel uint64) Status {
	if edge != Rising {
		return ErrInvalidTiming
	}
	return d.configureTiming(task, rate, mode, samplesPerChannel)
}

// StartTask sends the acquisition parameters to the firmware.
func (d *Serial) StartTask(task TaskHandle) Status {
	if code := d.start(task); code != StatusOK {
		return code
	}
	cfg, code := d.snapshot(task)
	if code != StatusOK {
		return code
	}

	mode := "V"
	if cfg.mode == Current {
		mode = "I"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.drain()
	code = d.command(fmt.Sprintf("START %s %d %d %s %d",
		mode, cfg.spec.First(), cfg.spec.Count(), strconv.FormatFloat(cfg.rate, 'f', -1, 64), cfg.samples))
	if code != StatusOK {
		d.stop(task)
	}
	return code
}

// ReadAnalog collects scans until the firmware reports END or the timeout
// expires. Fewer scans than requested are returned as a partial read; a
// timeout is an error only when no scan arrived.
func (d *Serial) ReadAnalog(task TaskHandle, samplesPerChannel int, timeout time.Duration, layout Layout, buf []float64) (int, Status) {
	cfg, code := d.readableTask(task, samplesPerChannel, buf)
	if code != StatusOK {
		return 0, code
	}
	if timeout <= 0 {
		timeout = commandTimeout
	}

	channels := cfg.spec.Count()
	scans := make([]float64, 0, samplesPerChannel*channels)
	deadline := time.Now().Add(timeout)

	d.mu.Lock()
	defer d.mu.Unlock()

	read := 0
	for read < samplesPerChannel {
		line, code := d.receive(time.Until(deadline))
		if code == ErrReadTimeout && read > 0 {
			log.Printf("Read timed out after %d of %d scan(s)", read, samplesPerChannel)
			return d.fill(buf, scans, read, channels, samplesPerChannel, layout), StatusOK
		}
		if code != StatusOK {
			return 0, code
		}

		switch {
		case strings.HasPrefix(line, "D "):
			values, err := parseScan(line[2:], channels)
			if err != nil {
				log.Printf("Failed to parse line '%s': %v", line, err)
				return 0, ErrProtocolMessage
			}
			if cfg.mode == Current {
				for i := range values {
					values[i] /= cfg.shunt
				}
			}
			scans = append(scans, values...)
			read++
		case strings.HasPrefix(line, "END"):
			return d.fill(buf, scans, read, channels, samplesPerChannel, layout), StatusOK
		case strings.HasPrefix(line, "ERR"):
			return 0, parseErrLine(line)
		default:
			log.Printf("Ignoring unexpected line '%s'", line)
		}
	}

	return d.fill(buf, scans, read, channels, samplesPerChannel, layout), StatusOK
}

// fill copies scan-ordered values into buf using layout. Channel groups are
// sized for samplesPerChannel, so each group holds read values at its start.
func (d *Serial) fill(buf, scans []float64, read, channels, samplesPerChannel int, layout Layout) int {
	if layout == GroupByScan {
		copy(buf, scans)
		return read
	}
	grouped := make([]float64, len(scans))
	Deinterleave(grouped, scans, channels)
	for c := range channels {
		copy(buf[c*samplesPerChannel:c*samplesPerChannel+read], grouped[c*read:(c+1)*read])
	}
	return read
}

// StopTask stops a running acquisition on the firmware.
func (d *Serial) StopTask(task TaskHandle) Status {
	cfg, code := d.snapshot(task)
	if code != StatusOK {
		return code
	}
	if code := d.stop(task); code != StatusOK {
		return code
	}
	if !cfg.started {
		return StatusOK
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.command("STOP")
}

func (d *Serial) ClearTask(task TaskHandle) Status {
	return d.clear(task)
}

func (d *Serial) ErrorString(code Status) string {
	return describeStatus(code)
}

// parseScan parses one comma-separated scan of channel values.
// Format: v0,v1,...,vN-1
// Example: 0.125,-1.5,3.3
func parseScan(s string, channels int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != channels {
		return nil, fmt.Errorf("invalid scan: expected %d values, got %d", channels, len(parts))
	}

	values := make([]float64, channels)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// parseErrLine extracts the status code of an "ERR <code>" line.
func parseErrLine(line string) Status {
	code, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "ERR")), 10, 32)
	if err != nil || code == 0 {
		return ErrProtocolMessage
	}
	return Status(code)
}
