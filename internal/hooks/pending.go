package hooks

// Pending is the completion handle of work started without waiting for it
type Pending struct {
	done chan struct{}
	err  error
}

// Go runs fn in its own goroutine and returns its handle
func Go(fn func() error) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.err = fn()
	}()
	return p
}

// Resolved returns a handle that is already complete
func Resolved(err error) *Pending {
	p := &Pending{done: make(chan struct{}), err: err}
	close(p.done)
	return p
}

// Wait blocks until the work finishes and returns its error
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// Done is closed when the work finishes
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the result. It is only meaningful once Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}
