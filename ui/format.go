package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// formatSpeed uses the same SI units as the console renderer and the logs.
func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}

func formatETA(bytesPerSec float64, totalBytes, completedBytes int64) string {
	if completedBytes == 0 || bytesPerSec <= 0 || totalBytes == 0 {
		return "Calculating..."
	}

	remainingBytes := totalBytes - completedBytes
	if remainingBytes <= 0 {
		return "0s"
	}

	// compare in seconds, a Duration overflows long before
	secs := float64(remainingBytes) / bytesPerSec
	if secs > 24*60*60 {
		return "> 1d"
	}

	return time.Duration(secs * float64(time.Second)).Round(time.Second).String()
}

// formatElapsed renders d as hh:mm:ss.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
