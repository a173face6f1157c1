package engine

// ledger tracks lines submitted to the engine whose results have not yet
// been consumed. It is the correctness anchor pairing the request and
// response streams: the writer increments it, the reader decrements it,
// and it must reach zero before the engine is idle.
//
// Mutated from a single goroutine only.
type ledger struct {
	pending int
}

// add records n lines accepted into the outbound buffer.
func (l *ledger) add(n int) {
	l.pending += n
}

// consume records n lines resolved from the inbound buffer.
// A would-be-negative count means writer/reader accounting has
// desynchronized, which is fatal.
func (l *ledger) consume(n int) error {
	if n > l.pending {
		return errorf(ErrCodeLedgerUnderflow,
			"consumed %d lines with only %d pending", n, l.pending)
	}
	l.pending -= n
	return nil
}

// count reports the current pending-line count.
func (l *ledger) count() int {
	return l.pending
}
