package mididev

import (
	"errors"
	"syscall"
	"testing"
	"time"
)

func newOpenOutDevice(t *testing.T) (*OutDevice, *MockRegistry, *MockPort) {
	t.Helper()

	reg := NewMockRegistry()
	reg.AddOutput("mock-out")

	dev, err := NewOutDevice(reg)
	if err != nil {
		t.Fatalf("NewOutDevice failed: %v", err)
	}
	if err := dev.Open(0); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return dev, reg, reg.LastPort()
}

func TestOutDevice_OpenClose(t *testing.T) {
	dev, _, port := newOpenOutDevice(t)

	if !dev.IsOpen() {
		t.Error("Expected device to be open")
	}
	if dev.DeviceID() != 0 {
		t.Errorf("Expected DeviceID 0, got %d", dev.DeviceID())
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if dev.IsOpen() {
		t.Error("Expected device to be closed")
	}
	if !port.IsClosed() {
		t.Error("Expected driver port to be closed")
	}
	if err := dev.Close(); err != nil {
		t.Errorf("Second Close should be nil, got %v", err)
	}
}

func TestOutDevice_OpenUnknownDevice(t *testing.T) {
	reg := NewMockRegistry()
	dev, err := NewOutDevice(reg)
	if err != nil {
		t.Fatalf("NewOutDevice failed: %v", err)
	}

	if err := dev.Open(3); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestOutDevice_SendShort(t *testing.T) {
	dev, _, port := newOpenOutDevice(t)
	defer dev.Close()

	noteOn := uint32(0x90 | 0x3C<<8 | 0x40<<16)
	if err := dev.Send(noteOn); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	sent := port.SentShort()
	if len(sent) != 1 || sent[0] != noteOn {
		t.Errorf("Unexpected sent messages: %#v", sent)
	}

	snap := dev.Metrics().Snapshot()
	if snap.ShortOut != 1 {
		t.Errorf("Expected ShortOut=1, got %d", snap.ShortOut)
	}
}

func TestOutDevice_Send3(t *testing.T) {
	dev, _, port := newOpenOutDevice(t)
	defer dev.Close()

	if err := dev.Send3(0x90, 0x3C, 0x40); err != nil {
		t.Fatalf("Send3 failed: %v", err)
	}

	sent := port.SentShort()
	if len(sent) != 1 || sent[0] != 0x90|0x3C<<8|0x40<<16 {
		t.Errorf("Unexpected sent messages: %#v", sent)
	}
}

func TestOutDevice_SendWhenClosedIsNoOp(t *testing.T) {
	dev, _, port := newOpenOutDevice(t)
	if err := dev.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := dev.Send(0x90); err != nil {
		t.Errorf("Send on closed device should be a silent no-op, got %v", err)
	}
	if len(port.SentShort()) != 0 {
		t.Error("Nothing should reach the driver after close")
	}
}

func TestOutDevice_SendError(t *testing.T) {
	dev, _, port := newOpenOutDevice(t)
	defer dev.Close()

	port.SetSendError(syscall.EIO)
	if err := dev.Send(0x90); !IsCode(err, ErrCodeDriver) {
		t.Errorf("Expected driver error, got %v", err)
	}

	snap := dev.Metrics().Snapshot()
	if snap.ShortErrors != 1 {
		t.Errorf("Expected ShortErrors=1, got %d", snap.ShortErrors)
	}
}

func TestOutDevice_SendLong(t *testing.T) {
	dev, _, port := newOpenOutDevice(t)
	defer dev.Close()

	sysex := []byte{0xF0, 0x43, 0x12, 0x00, 0xF7}
	if err := dev.SendLong(sysex); err != nil {
		t.Fatalf("SendLong failed: %v", err)
	}
	if port.PendingSubmitted() != 1 {
		t.Fatalf("Expected 1 in-flight buffer, got %d", port.PendingSubmitted())
	}

	// Driver signals the transfer complete; the worker reclaims the
	// record without any further session call
	if err := port.CompleteLong(sysex, 0); err != nil {
		t.Fatalf("CompleteLong failed: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return port.PreparedCount() == 0 }) {
		t.Errorf("Expected record reclaimed, %d left", port.PreparedCount())
	}
	if port.UnpreparedWhileQueued() != 0 {
		t.Errorf("Record unprepared while in flight: %d", port.UnpreparedWhileQueued())
	}

	snap := dev.Metrics().Snapshot()
	if snap.LongOut != 1 {
		t.Errorf("Expected LongOut=1, got %d", snap.LongOut)
	}
	if snap.LongOutBytes != uint64(len(sysex)) {
		t.Errorf("Expected LongOutBytes=%d, got %d", len(sysex), snap.LongOutBytes)
	}
}

func TestOutDevice_SendLongWhenClosed(t *testing.T) {
	reg := NewMockRegistry()
	dev, err := NewOutDevice(reg)
	if err != nil {
		t.Fatalf("NewOutDevice failed: %v", err)
	}

	if err := dev.SendLong([]byte{0xF0, 0xF7}); !IsCode(err, ErrCodeClosed) {
		t.Errorf("Expected closed error, got %v", err)
	}
}

func TestOutDevice_SendLongValidation(t *testing.T) {
	dev, _, _ := newOpenOutDevice(t)
	defer dev.Close()

	if err := dev.SendLong(nil); !IsCode(err, ErrCodeInvalidParameters) {
		t.Errorf("Expected invalid parameters for empty message, got %v", err)
	}
}

func TestOutDevice_CloseReclaimsInFlight(t *testing.T) {
	dev, _, port := newOpenOutDevice(t)

	// Transfers the driver never completes
	for i := 0; i < 3; i++ {
		if err := dev.SendLong([]byte{0xF0, byte(i), 0xF7}); err != nil {
			t.Fatalf("SendLong failed: %v", err)
		}
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if port.PreparedCount() != 0 {
		t.Errorf("Expected teardown to reclaim records, %d left", port.PreparedCount())
	}
	if port.UnpreparedWhileQueued() != 0 {
		t.Errorf("Records unprepared while in flight: %d", port.UnpreparedWhileQueued())
	}

	snap := dev.Metrics().Snapshot()
	if snap.TeardownDrains != 3 {
		t.Errorf("Expected TeardownDrains=3, got %d", snap.TeardownDrains)
	}
}

func TestOutDevice_CompletionNotification(t *testing.T) {
	reg := NewMockRegistry()
	reg.AddOutput("mock-out")
	recv := NewRecordingReceiver()

	dev, err := NewOutDeviceOptions(reg, recv, nil)
	if err != nil {
		t.Fatalf("NewOutDeviceOptions failed: %v", err)
	}
	if err := dev.Open(0); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dev.Close()
	port := reg.LastPort()

	sysex := []byte{0xF0, 0x7D, 0xF7}
	if err := dev.SendLong(sysex); err != nil {
		t.Fatalf("SendLong failed: %v", err)
	}
	if err := port.CompleteLong(sysex, 5*time.Millisecond); err != nil {
		t.Fatalf("CompleteLong failed: %v", err)
	}

	if !recv.WaitLongs(1, time.Second) {
		t.Fatal("Expected transfer completion notification")
	}
}

func TestOutDevice_ImplicitReopen(t *testing.T) {
	reg := NewMockRegistry()
	reg.AddOutput("first")
	reg.AddOutput("second")

	dev, err := NewOutDevice(reg)
	if err != nil {
		t.Fatalf("NewOutDevice failed: %v", err)
	}
	if err := dev.Open(0); err != nil {
		t.Fatalf("Open(0) failed: %v", err)
	}
	first := reg.LastPort()

	if err := dev.Open(1); err != nil {
		t.Fatalf("Open(1) failed: %v", err)
	}
	defer dev.Close()

	if !first.IsClosed() {
		t.Error("Expected first port closed by implicit reopen")
	}
	if dev.DeviceID() != 1 {
		t.Errorf("Expected DeviceID 1, got %d", dev.DeviceID())
	}
}

func TestOpenOutputConvenience(t *testing.T) {
	reg := NewMockRegistry()
	reg.AddOutput("mock-out")

	dev, err := OpenOutput(reg, 0)
	if err != nil {
		t.Fatalf("OpenOutput failed: %v", err)
	}
	defer dev.Close()

	if !dev.IsOpen() {
		t.Error("Expected open device from OpenOutput")
	}
}
