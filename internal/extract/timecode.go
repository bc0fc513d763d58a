package extract

import (
	"fmt"
	"math"
)

// FormatTimecode converts seconds to an HH:MM:SS.mmm timecode with
// millisecond precision. Negative input is treated as zero.
//
//	FormatTimecode(0)        // "00:00:00.000"
//	FormatTimecode(90.5)     // "00:01:30.500"
//	FormatTimecode(3661.25)  // "01:01:01.250"
func FormatTimecode(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMs := int64(math.Round(seconds * 1000))
	hours := totalMs / 3_600_000
	minutes := (totalMs % 3_600_000) / 60_000
	secs := totalMs % 60_000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs/1000, secs%1000)
}
