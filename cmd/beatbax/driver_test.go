package main

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerDriverFiresOnInterval(t *testing.T) {
	d := newTickerDriver(5 * time.Millisecond)
	var count int64
	d.Start(func() { atomic.AddInt64(&count, 1) })
	time.Sleep(40 * time.Millisecond)
	d.Stop()

	if atomic.LoadInt64(&count) == 0 {
		t.Fatal("expected at least one tick")
	}
}

func TestTickerDriverStopsFiring(t *testing.T) {
	d := newTickerDriver(5 * time.Millisecond)
	var count int64
	d.Start(func() { atomic.AddInt64(&count, 1) })
	time.Sleep(20 * time.Millisecond)
	d.Stop()
	after := atomic.LoadInt64(&count)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt64(&count) != after {
		t.Error("expected no further ticks after Stop()")
	}
}
