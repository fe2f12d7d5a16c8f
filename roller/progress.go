package roller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gosuri/uilive"
)

// progressPrinter periodically rewrites a single terminal line with the
// number of completed episodes.
type progressPrinter struct {
	total  int64
	done   *atomic.Int64
	writer *uilive.Writer

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

func newProgressPrinter(total int64, done *atomic.Int64) *progressPrinter {
	ctx, cancel := context.WithCancel(context.Background())
	return &progressPrinter{
		total:   total,
		done:    done,
		writer:  uilive.New(),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go func() {
		defer close(p.stopped)
		for {
			select {
			case <-p.ctx.Done():
				p.print()
				p.writer.Stop()
				return
			case <-time.After(500 * time.Millisecond):
				p.print()
			}
		}
	}()
}

func (p *progressPrinter) Stop() {
	p.cancel()
	<-p.stopped
}

func (p *progressPrinter) print() {
	fmt.Fprintf(p.writer, "Episodes: %d/%d\n", p.done.Load(), p.total)
	p.writer.Flush()
}
