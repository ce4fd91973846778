package live

import (
	"context"
	"sync"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

// ThreadView projects a thread subscription through a Filter. The projection
// is recomputed on every new snapshot and on every filter change, whichever
// comes later.
type ThreadView struct {
	source  *Subscription[[]inquiry.Thread]
	out     *Subscription[[]inquiry.Thread]
	mu      sync.Mutex
	filter  inquiry.Filter
	refresh chan struct{}
}

// NewThreadView takes ownership of src; cancelling the view cancels src.
func NewThreadView(ctx context.Context, src *Subscription[[]inquiry.Thread], filter inquiry.Filter) *ThreadView {
	ctx, cancel := context.WithCancel(ctx)
	v := &ThreadView{
		source:  src,
		out:     newSubscription[[]inquiry.Thread](cancel),
		filter:  filter,
		refresh: make(chan struct{}, 1),
	}
	go v.run(ctx)
	return v
}

func (v *ThreadView) C() <-chan []inquiry.Thread {
	return v.out.C()
}

func (v *ThreadView) Cancel() {
	v.out.Cancel()
}

func (v *ThreadView) Filter() inquiry.Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// SetFilter replaces the filter and re-projects the last snapshot.
func (v *ThreadView) SetFilter(f inquiry.Filter) {
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
	select {
	case v.refresh <- struct{}{}:
	default:
	}
}

func (v *ThreadView) run(ctx context.Context) {
	defer v.out.finish()
	defer v.source.Cancel()

	var (
		last []inquiry.Thread
		have bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-v.source.C():
			if !ok {
				return
			}
			last, have = snapshot, true
		case <-v.refresh:
			if !have {
				continue
			}
		}
		v.out.deliver(inquiry.Project(last, v.Filter()))
	}
}
