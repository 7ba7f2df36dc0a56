package simhw

import "testing"

func TestAdvanceMovesClock(t *testing.T) {
	s := New()
	s.Advance(10)
	s.Advance(5)
	if s.NowMs() != 15 {
		t.Fatalf("NowMs = %d, want 15", s.NowMs())
	}
}

func TestFeedRXAndUARTRxRead(t *testing.T) {
	s := New()
	s.FeedRX(1, 2, 3)
	for _, want := range []byte{1, 2, 3} {
		if !s.UARTRxReady() {
			t.Fatalf("expected UARTRxReady while bytes remain")
		}
		if got := s.UARTRxRead(); got != want {
			t.Fatalf("read = %d, want %d", got, want)
		}
	}
	if s.UARTRxReady() {
		t.Fatalf("expected queue empty after draining")
	}
}

func TestUARTTxWriteAndTakeTX(t *testing.T) {
	s := New()
	s.UARTTxWrite(0xAA)
	s.UARTTxWrite(0xBB)
	got := s.TakeTX()
	if len(got) != 2 || got[0] != 0xAA || got[1] != 0xBB {
		t.Fatalf("TakeTX = %v", got)
	}
	if len(s.TakeTX()) != 0 {
		t.Fatalf("expected TakeTX to drain once")
	}
}

func TestFlashEraseWriteReadRoundTrip(t *testing.T) {
	s := New()
	s.FlashEraseSector()
	if err := s.FlashWriteWord(0, 0xDEADBEEF); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := s.FlashRead(0, 4)
	if len(got) != 4 || got[0] != 0xEF || got[3] != 0xDE {
		t.Fatalf("unexpected flash read-back: % x", got)
	}
}

func TestFlashWriteWordRejectsOutOfBounds(t *testing.T) {
	s := New()
	if err := s.FlashWriteWord(uint32(len(s.flash)), 0); err == nil {
		t.Fatalf("expected an error writing past the flash array")
	}
}

func TestWatchdogFeedCountsCalls(t *testing.T) {
	s := New()
	s.WatchdogFeed()
	s.WatchdogFeed()
	if s.FeedCount() != 2 {
		t.Fatalf("FeedCount = %d, want 2", s.FeedCount())
	}
}

func TestSetOverrideSuppressesSetPin(t *testing.T) {
	s := New()
	s.SetOverride(0, true)
	s.SetPin(0, false)
	if !s.PinState(0) {
		t.Fatalf("expected override to keep pin 0 high despite SetPin(false)")
	}
	s.ClearOverride(0)
	s.SetPin(0, false)
	if s.PinState(0) {
		t.Fatalf("expected SetPin to take effect once override is cleared")
	}
}
