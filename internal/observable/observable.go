// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package observable provides a value holder that notifies subscribers about changes.
package observable

import "sync"

// ReadOnly is the consumer view of a Value.
type ReadOnly[T any] interface {
	Get() T
	Subscribe(buffer int) (<-chan T, func())
}

// Value holds a value of type T and broadcasts every change to its subscribers. A slow
// subscriber never blocks Set: if its channel is full, the oldest pending value is dropped,
// so the latest value is always delivered.
type Value[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[chan T]struct{}
}

// New returns a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  make(map[chan T]struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set replaces the current value and notifies all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = val
	for ch := range v.subs {
		deliver(ch, val)
	}
}

// Update applies fn to the current value under the lock and stores the result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = fn(v.value)
	for ch := range v.subs {
		deliver(ch, v.value)
	}
	return v.value
}

// Subscribe returns a channel that first receives the current value and then every change,
// and a function that unsubscribes and closes the channel. The function is safe to call
// more than once.
func (v *Value[T]) Subscribe(buffer int) (<-chan T, func()) {
	ch := make(chan T, max(buffer, 1))
	v.mu.Lock()
	v.subs[ch] = struct{}{}
	ch <- v.value
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, ch)
			v.mu.Unlock()
			close(ch)
		})
	}
}

// ReadOnly returns a view of v without Set.
func (v *Value[T]) ReadOnly() ReadOnly[T] {
	return readOnly[T]{v}
}

type readOnly[T any] struct {
	v *Value[T]
}

func (r readOnly[T]) Get() T {
	return r.v.Get()
}

func (r readOnly[T]) Subscribe(buffer int) (<-chan T, func()) {
	return r.v.Subscribe(buffer)
}

// deliver sends val without blocking. Must be called with the write lock held, which makes
// the subscriber the only other party touching ch.
func deliver[T any](ch chan T, val T) {
	for {
		select {
		case ch <- val:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
