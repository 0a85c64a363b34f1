//go:build tinygo

package main

import "machine"

const (
	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Burst limits
	MAX_RATE_HZ = 10000 // Fastest supported sample clock
	MAX_SAMPLES = 10000 // Scans per burst

	// Serial configuration
	// One scan of four channels is "D 1.6504,0.0008,3.2992,1.0000\n" = ~32 bytes.
	// 115200 baud carries ~11,520 bytes/sec, about 360 four-channel scans/sec
	// streamed; faster clocks are paced by the UART.
	UART_BAUD_RATE = 115200
)

// Analog inputs in physical channel order: ai0 is PIN_AI[0].
var PIN_AI = [...]machine.Pin{
	machine.A0,
	machine.A1,
	machine.A2,
	machine.A3,
}
