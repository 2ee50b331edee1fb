package cost

import "log"

func logf(format string, args ...any) {
	log.Printf("[cost] "+format, args...)
}
