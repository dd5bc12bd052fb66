package game

import (
	"sync"
	"testing"
	"time"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil || hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("hub channels/maps not initialized")
	}
	if count := hub.GetClientCount(); count != 0 {
		t.Errorf("GetClientCount() = %v, want 0", count)
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	time.Sleep(10 * time.Millisecond)

	// Round and spin events must not block the caller.
	hub.Broadcast(map[string]interface{}{
		"type": "round_update",
		"data": &PredictionState{RoundID: 1, LockedPrice: 612.45, TimeLeft: 299, IsLive: true},
	})
	hub.Broadcast(map[string]interface{}{
		"type":        "spin_result",
		"user_id":     "user1",
		"is_win":      false,
		"spin_number": 1,
	})

	time.Sleep(10 * time.Millisecond)
}

func TestHub_BroadcastChannelFull(t *testing.T) {
	hub := NewHub()

	// Hub not running, so the channel fills to capacity.
	for i := 0; i < 100; i++ {
		hub.Broadcast(map[string]string{"type": "round_update"})
	}

	done := make(chan bool, 1)
	go func() {
		hub.Broadcast(map[string]string{"type": "overflow"})
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Broadcast() blocked when channel was full")
	}
}

func TestHub_ConcurrentBroadcasts(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	time.Sleep(10 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hub.Broadcast(map[string]interface{}{
				"type":      "round_update",
				"time_left": n,
			})
		}(i)
	}

	done := make(chan bool)
	go func() {
		wg.Wait()
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("concurrent broadcasts timed out")
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub()

	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Stop()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Stop()")
	}

	if count := hub.GetClientCount(); count != 0 {
		t.Errorf("GetClientCount() = %v after Stop, want 0", count)
	}
}
