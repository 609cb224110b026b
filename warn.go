package afscgap

import "fmt"

// largeResultWarningFmt mirrors the original system's LARGE_WARNING message,
// surfaced once per query whose candidate haul count exceeds the
// configured threshold.
const largeResultWarningFmt = "afscgap: query matched %d hauls, which exceeds the recommended threshold of %d and may be slow; consider adding more specific filters"

// defaultLargeResultThreshold is the WARNING_THRESHOLD default from the
// original system: beyond this many candidate hauls, a query is considered
// large enough to warrant a warning.
const defaultLargeResultThreshold = 3000

// WarnFunc receives a warning message produced during query planning. The
// default, set by NewConfig, writes to the standard library log package,
// matching the teacher's exclusive use of stdlib log for diagnostics.
type WarnFunc func(message string)

// checkLargeResult invokes warn with the large-result message if the
// candidate haul count exceeds threshold, otherwise does nothing.
func checkLargeResult(count, threshold int, warn WarnFunc) {
	if warn == nil {
		return
	}
	if count > threshold {
		warn(fmt.Sprintf(largeResultWarningFmt, count, threshold))
	}
}
