package main

import (
	"sync"
)

const buffer = 64

// fanout delivers each published value to every listener. Slow listeners
// miss values rather than blocking the publisher.
type fanout[T any] struct {
	mut     sync.Mutex
	subs    []chan T
	dropped func()
}

func newFanout[T any](dropped func()) *fanout[T] {
	return &fanout[T]{dropped: dropped}
}

// Publish returns the number of listeners the value was delivered to.
func (s *fanout[T]) Publish(val T) int {
	s.mut.Lock()
	defer s.mut.Unlock()
	n := 0
	for _, sub := range s.subs {
		select {
		case sub <- val:
			n++
		default:
			if s.dropped != nil {
				s.dropped()
			}
		}
	}
	return n
}

func (s *fanout[T]) Listen() *fanoutSub[T] {
	ch := make(chan T, buffer)
	s.mut.Lock()
	s.subs = append(s.subs, ch)
	s.mut.Unlock()
	return &fanoutSub[T]{s, ch}
}

func (s *fanout[T]) Listeners() int {
	s.mut.Lock()
	defer s.mut.Unlock()
	return len(s.subs)
}

func (s *fanout[T]) release(ch chan T) {
	s.mut.Lock()
	defer s.mut.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

type fanoutSub[T any] struct {
	pubsub *fanout[T]
	ch     chan T
}

func (s *fanoutSub[T]) Channel() <-chan T {
	return s.ch
}

// Close stops delivery. Values already buffered stay readable.
func (s *fanoutSub[T]) Close() error {
	s.pubsub.release(s.ch)
	return nil
}
