//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"strconv"
	"strings"
	"time"
)

// Status codes reported as "ERR <code>"; they match the host driver codes.
const (
	errInvalidChannel  = -200170
	errInvalidTiming   = -200077
	errProtocolMessage = -209801
)

// burst is the acquisition currently in progress.
type burst struct {
	running  bool
	first    int
	count    int
	interval time.Duration
	samples  int
	done     int
	next     time.Time
}

var (
	adcs [len(PIN_AI)]machine.ADC
	uart = machine.Serial // Same port the host opens

	current burst

	// Serial buffer for reading lines
	serialBuffer [64]byte
	serialPos    int

	// Output buffer for one scan line
	outBuffer []byte
)

func main() {
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	for i, pin := range PIN_AI {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(adcConfig)
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})
	outBuffer = make([]byte, 0, 16*len(PIN_AI)+8)

	for {
		processSerial()

		if current.running && !time.Now().Before(current.next) {
			scan()
		}

		// Small delay to prevent tight loop when idle
		if !current.running {
			time.Sleep(100 * time.Microsecond)
		}
	}
}

// scan reads every channel of the burst once and sends a D line.
func scan() {
	outBuffer = append(outBuffer[:0], 'D', ' ')
	for c := range current.count {
		if c > 0 {
			outBuffer = append(outBuffer, ',')
		}
		raw := adcs[current.first+c].Get() >> (16 - ADC_RESOLUTION)
		volts := float64(raw) * ADC_REFERENCE_MV / 1000 / float64(uint32(1)<<ADC_RESOLUTION-1)
		outBuffer = strconv.AppendFloat(outBuffer, volts, 'f', 4, 64)
	}
	outBuffer = append(outBuffer, '\n')
	uart.Write(outBuffer)

	current.done++
	current.next = current.next.Add(current.interval)
	if current.done >= current.samples {
		current.running = false
		reply("END " + strconv.Itoa(current.done))
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleCommand(string(serialBuffer[:serialPos]))
			}
			serialPos = 0
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Line too long - drop it
			serialPos = 0
		}
	}
}

func handleCommand(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "RESET", "STOP":
		current = burst{}
		reply("OK")
	case "START":
		if code := startBurst(fields[1:]); code != 0 {
			replyError(code)
			return
		}
		reply("OK")
	default:
		replyError(errProtocolMessage)
	}
}

// startBurst parses "<V|I> <first> <count> <rate> <samples>" and arms the burst.
// Current is measured as the voltage across the shunt; the host scales it.
func startBurst(args []string) int {
	if len(args) != 5 || (args[0] != "V" && args[0] != "I") {
		return errProtocolMessage
	}
	first, err1 := strconv.Atoi(args[1])
	count, err2 := strconv.Atoi(args[2])
	rate, err3 := strconv.ParseFloat(args[3], 64)
	samples, err4 := strconv.Atoi(args[4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return errProtocolMessage
	}

	if first < 0 || count < 1 || first+count > len(PIN_AI) {
		return errInvalidChannel
	}
	if rate <= 0 || rate > MAX_RATE_HZ || samples < 1 || samples > MAX_SAMPLES {
		return errInvalidTiming
	}

	current = burst{
		running:  true,
		first:    first,
		count:    count,
		interval: time.Duration(float64(time.Second) / rate),
		samples:  samples,
		next:     time.Now(),
	}
	return 0
}

func reply(s string) {
	uart.Write([]byte(s + "\n"))
}

func replyError(code int) {
	reply("ERR " + strconv.Itoa(code))
}
