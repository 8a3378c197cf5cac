// Package serialdev talks to the UART peripherals: a serial character LCD and
// an RDM6300 125 kHz RFID reader.
package serialdev
