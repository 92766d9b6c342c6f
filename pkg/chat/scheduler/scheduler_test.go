package scheduler_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/chat/scheduler"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
)

// recorder is an Updater that keeps every committed batch.
type recorder struct {
	mu      sync.Mutex
	state   transcript.Transcript
	commits int
}

func (r *recorder) Update(fns ...transcript.Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fn := range fns {
		r.state = fn(r.state)
	}
	r.commits++
}

func (r *recorder) snapshot() (transcript.Transcript, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.commits
}

func appendText(text string) transcript.Transform {
	return func(t transcript.Transcript) transcript.Transcript {
		next := append(transcript.Transcript(nil), t...)
		return append(next, transcript.NewTextMessage(text, transcript.RoleAssistant, text, time.Time{}))
	}
}

func ids(t transcript.Transcript) []string {
	out := make([]string, 0, len(t))
	for _, m := range t {
		out = append(out, m.ID)
	}
	return out
}

var _ = Describe("Scheduler", func() {
	var (
		clock *scheduler.ManualClock
		rec   *recorder
		s     *scheduler.Scheduler
	)

	BeforeEach(func() {
		clock = scheduler.NewManualClock()
		rec = &recorder{}
		s = scheduler.New(&scheduler.Config{Target: rec, Clock: clock})
	})

	Describe("Schedule", func() {
		It("requests a single frame for many transforms", func() {
			s.Schedule(appendText("a"))
			s.Schedule(appendText("b"))
			s.Schedule(appendText("c"))

			Expect(clock.Pending()).To(Equal(1))
			Expect(s.Pending()).To(Equal(3))

			_, commits := rec.snapshot()
			Expect(commits).To(BeZero())
		})

		It("commits the whole batch once per frame in FIFO order", func() {
			s.Schedule(appendText("a"))
			s.Schedule(appendText("b"))
			s.Schedule(appendText("c"))
			Expect(clock.Tick()).To(Equal(1))

			state, commits := rec.snapshot()
			Expect(commits).To(Equal(1))
			Expect(ids(state)).To(Equal([]string{"a", "b", "c"}))
			Expect(s.Pending()).To(BeZero())
		})

		It("matches applying the transforms directly", func() {
			fns := []transcript.Transform{appendText("x"), appendText("y"), appendText("z")}
			for _, fn := range fns {
				s.Schedule(fn)
			}
			s.Flush()

			var direct transcript.Transcript
			direct = fns[2](fns[1](fns[0](direct)))

			state, _ := rec.snapshot()
			Expect(state).To(Equal(direct))
		})

		It("requests a new frame after one has fired", func() {
			s.Schedule(appendText("a"))
			clock.Tick()
			s.Schedule(appendText("b"))
			Expect(clock.Pending()).To(Equal(1))
			clock.Tick()

			state, commits := rec.snapshot()
			Expect(commits).To(Equal(2))
			Expect(ids(state)).To(Equal([]string{"a", "b"}))
		})

		It("ignores nil transforms", func() {
			s.Schedule(nil)
			Expect(s.Pending()).To(BeZero())
			Expect(clock.Pending()).To(BeZero())
		})
	})

	Describe("Flush", func() {
		It("commits immediately and cancels the frame", func() {
			s.Schedule(appendText("a"))
			s.Flush()

			Expect(clock.Pending()).To(BeZero())
			state, commits := rec.snapshot()
			Expect(commits).To(Equal(1))
			Expect(ids(state)).To(Equal([]string{"a"}))
		})

		It("does nothing when the queue is empty", func() {
			s.Flush()
			_, commits := rec.snapshot()
			Expect(commits).To(BeZero())
		})
	})

	Describe("Cancel", func() {
		It("drops queued transforms without applying them", func() {
			s.Schedule(appendText("a"))
			s.Schedule(appendText("b"))

			Expect(s.Cancel()).To(Equal(2))
			Expect(clock.Tick()).To(BeZero())

			state, commits := rec.snapshot()
			Expect(commits).To(BeZero())
			Expect(state).To(BeEmpty())
		})
	})

	Describe("stale frames", func() {
		It("ignores a callback that fires after a flush", func() {
			clock := &capturingClock{}
			s := scheduler.New(&scheduler.Config{Target: rec, Clock: clock})

			s.Schedule(appendText("a"))
			s.Flush()
			s.Schedule(appendText("b"))

			// The first callback was already in flight when Flush ran.
			clock.frames[0]()

			state, _ := rec.snapshot()
			Expect(ids(state)).To(Equal([]string{"a"}))
			Expect(s.Pending()).To(Equal(1))

			clock.frames[1]()
			state, _ = rec.snapshot()
			Expect(ids(state)).To(Equal([]string{"a", "b"}))
		})
	})

	Describe("with a store", func() {
		It("notifies subscribers once per flush", func() {
			store := transcript.NewStore()
			s := scheduler.New(&scheduler.Config{Target: store, Clock: clock})

			notified := 0
			store.Subscribe(func(transcript.Snapshot) { notified++ })

			s.Schedule(appendText("a"))
			s.Schedule(appendText("b"))
			clock.Tick()

			Expect(notified).To(Equal(1))
			Expect(store.Messages()).To(HaveLen(2))
		})
	})

	Describe("IntervalClock", func() {
		It("flushes on its own", func() {
			s := scheduler.New(&scheduler.Config{Target: rec, Clock: scheduler.NewIntervalClock(time.Millisecond)})
			s.Schedule(appendText("a"))

			Eventually(func() int {
				_, commits := rec.snapshot()
				return commits
			}).Should(Equal(1))
		})

		It("falls back to the default interval", func() {
			Expect(scheduler.NewIntervalClock(0).Interval).To(Equal(scheduler.DefaultFrameInterval))
		})
	})
})

// capturingClock records callbacks without firing them, and reports that
// cancellation came too late, as a timer does once it has fired.
type capturingClock struct {
	frames []func()
}

func (c *capturingClock) RequestFrame(fn func()) func() bool {
	c.frames = append(c.frames, fn)
	return func() bool { return false }
}
