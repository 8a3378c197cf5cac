package home

import "time"

// RawSample is one ranging reading. Valid is false when the sensor timed out
// or returned a value outside its usable range.
type RawSample struct {
	// Distance is the measured distance in centimetres. Meaningless when Valid is false.
	Distance float64
	// Valid reports whether Distance holds a usable reading.
	Valid bool
	// At is the capture timestamp.
	At time.Time
}

// Missing builds an invalid sample captured at the given time.
func Missing(at time.Time) RawSample {
	return RawSample{At: at}
}

// Sample builds a valid sample.
func Sample(distance float64, at time.Time) RawSample {
	return RawSample{
		Distance: distance,
		Valid:    true,
		At:       at,
	}
}
