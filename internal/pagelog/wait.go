package pagelog

import "time"

// WaitForUpdate blocks until the log grows or is closed, or timeout elapses.
// It returns true if woken by a change, false on timeout. A non-positive
// timeout waits indefinitely. On a closed log it returns true at once.
func (l *Log) WaitForUpdate(timeout time.Duration) bool {
	l.notifyMu.Lock()
	ch := l.notifyCh
	l.notifyMu.Unlock()
	// closed is set before the final notify, so either ch is already
	// closed or the flag is visible here.
	if l.closed.Load() {
		return true
	}
	if timeout <= 0 {
		<-ch
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}

// notify wakes every WaitForUpdate caller.
func (l *Log) notify() {
	l.notifyMu.Lock()
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	l.notifyMu.Unlock()
}
