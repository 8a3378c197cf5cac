// Package gpio drives the Raspberry Pi pins through direct register access:
// LEDs and the light relay as actuator devices, the HC-SR04 rangers and the
// light-system push button.
//
// Pins are abstracted behind Line so the timing logic can be tested without a
// board. rpio.Pin satisfies Line.
package gpio
