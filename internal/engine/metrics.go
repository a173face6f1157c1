package engine

import "time"

// CallMetrics summarizes one predict call. Populate via WithMetrics.
type CallMetrics struct {
	// CleanupTime is the time spent resolving lines left pending by
	// earlier calls before this call's own work started.
	CleanupTime time.Duration

	// Pending-line counts around the cleanup phase.
	BeforeCleanupPendingLines int
	AfterCleanupPendingLines  int

	// PrepareTime is the time from call start to the start of the
	// prediction loop, including formatting the common line part.
	PrepareTime time.Duration

	// TotalTime is the full duration of the call.
	TotalTime time.Duration

	// NumLines is the count of predictions produced.
	NumLines int
}

// CountSample is a timestamped byte or line count.
type CountSample struct {
	At time.Time
	N  int
}

// DurationSample is a timestamped phase duration.
type DurationSample struct {
	At time.Time
	D  time.Duration
}

// DetailedMetrics carries per-iteration samples of one predict call.
// Populate via WithDetailedMetrics.
type DetailedMetrics struct {
	SendingBytes   []CountSample // bytes accepted by the OS pipe per write
	ReceivingBytes []CountSample // bytes read from the OS pipe per read
	PendingLines   []CountSample // ledger count after each iteration

	GeneratingLinesTime []DurationSample
	SendingLinesTime    []DurationSample
	ReceivingLinesTime  []DurationSample
}
