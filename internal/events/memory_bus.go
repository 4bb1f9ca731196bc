package events

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed 表示总线已关闭。
var ErrBusClosed = errors.New("事件总线已关闭")

// MemoryBus 使用 channel 在进程内广播事件，主要用于测试与单机部署。
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	size   int
	closed bool
}

// NewMemoryBus 创建内存总线，size 为每个订阅者的缓冲大小。
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	return &MemoryBus{subs: make(map[int]chan Event), size: size}
}

// Publish 将事件投递给当前所有订阅者。缓冲已满的订阅者会阻塞发布方直到 ctx 结束。
func (b *MemoryBus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, ch := range b.subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- evt:
		}
	}
	return nil
}

// Subscribe 阻塞消费事件，直到 ctx 结束或总线关闭。
func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.size)
	b.subs[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-ch:
			if !ok {
				return ErrBusClosed
			}
			_ = handler(ctx, evt)
		}
	}
}

// Subscribers 返回当前订阅者数量。
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭总线并结束所有订阅。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	return nil
}
