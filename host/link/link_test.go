package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"rcpanel/host/serial"
	"rcpanel/host/serial/serialtest"
	"rcpanel/protocol"
)

func newTestLink(t *testing.T, devices *serialtest.Devices, maxFailures int) *Link {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Opener = devices.Open
	cfg.MaxFailures = maxFailures
	cfg.ConnectTimeout = 500 * time.Millisecond
	l := New(cfg, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNewLinkIsClosed(t *testing.T) {
	l := newTestLink(t, serialtest.NewDevices(), 0)
	test.That(t, l.State(), test.ShouldEqual, Closed)
	test.That(t, l.IsConnected(), test.ShouldBeFalse)
	test.That(t, l.Frame().Bytes(), test.ShouldResemble, []byte{'n', 0, 90})

	name, baud := l.Port()
	test.That(t, name, test.ShouldEqual, "")
	test.That(t, baud, test.ShouldEqual, 0)
}

func TestTransmitOnClosedLinkIsNoop(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)

	l.Set(protocol.SlotSpeed, 200)
	test.That(t, l.Transmit(), test.ShouldBeNil)
	test.That(t, devices.Opened(), test.ShouldBeEmpty)
	test.That(t, l.Stats().Frames, test.ShouldEqual, 0)
}

func TestCloseIsIdempotent(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)

	test.That(t, l.Close(), test.ShouldBeNil)
	test.That(t, l.Close(), test.ShouldBeNil)
	test.That(t, l.State(), test.ShouldEqual, Closed)

	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)
	port := devices.Port("/dev/ttyACM0")
	test.That(t, l.Close(), test.ShouldBeNil)
	test.That(t, l.Close(), test.ShouldBeNil)
	test.That(t, l.State(), test.ShouldEqual, Closed)
	test.That(t, port.CloseCount(), test.ShouldEqual, 1)
}

func TestOpenFailureLeavesLinkClosed(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)

	err := l.Open(context.Background(), "/dev/ttyUSB9", 9600)
	test.That(t, errors.Is(err, ErrConnection), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "/dev/ttyUSB9")
	test.That(t, l.State(), test.ShouldEqual, Closed)

	var connErr *ConnectionError
	test.That(t, errors.As(err, &connErr), test.ShouldBeTrue)
	test.That(t, connErr.Baud, test.ShouldEqual, 9600)

	test.That(t, l.Transmit(), test.ShouldBeNil)
}

func TestOpenRejectsUnsupportedBaud(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)

	err := l.Open(context.Background(), "/dev/ttyACM0", 250000)
	test.That(t, errors.Is(err, ErrConnection), test.ShouldBeTrue)
	test.That(t, errors.Is(err, serial.ErrUnsupportedBaud), test.ShouldBeTrue)
	test.That(t, devices.Opened(), test.ShouldBeEmpty)

	err = l.Open(context.Background(), "", 9600)
	test.That(t, errors.Is(err, ErrConnection), test.ShouldBeTrue)
}

func TestOpenTimeout(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	devices.Delay = 300 * time.Millisecond
	l := newTestLink(t, devices, 0)
	l.cfg.ConnectTimeout = 20 * time.Millisecond

	err := l.Open(context.Background(), "/dev/ttyACM0", 9600)
	test.That(t, errors.Is(err, ErrConnection), test.ShouldBeTrue)
	test.That(t, errors.Is(err, serial.ErrConnectTimeout), test.ShouldBeTrue)
	test.That(t, l.IsConnected(), test.ShouldBeFalse)
}

func TestFrameRoundTrip(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)

	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 115200), test.ShouldBeNil)
	test.That(t, l.State(), test.ShouldEqual, Connected)
	name, baud := l.Port()
	test.That(t, name, test.ShouldEqual, "/dev/ttyACM0")
	test.That(t, baud, test.ShouldEqual, 115200)

	l.Set(protocol.SlotSpeed, 200)
	test.That(t, l.Transmit(), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	test.That(t, port.Writes(), test.ShouldResemble, [][]byte{{'n', 200, 90}})
	test.That(t, port.FlushCount(), test.ShouldEqual, 1)
	test.That(t, devices.Opened()[0].Baud, test.ShouldEqual, 115200)
}

func TestLastWriteWinsPerSlot(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	l.Set(protocol.SlotTurn, protocol.Right)
	l.Set(protocol.SlotDirection, protocol.Reverse)
	l.Set(protocol.SlotSpeed, 12)
	l.Set(protocol.SlotDirection, protocol.Forward)
	l.Set(protocol.SlotTurn, protocol.Left)
	test.That(t, l.Transmit(), test.ShouldBeNil)

	test.That(t, devices.Port("/dev/ttyACM0").LastWrite(), test.ShouldResemble, []byte{'f', 12, 50})
}

func TestTransmitIsLevelTriggered(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		test.That(t, l.Transmit(), test.ShouldBeNil)
	}
	writes := devices.Port("/dev/ttyACM0").Writes()
	test.That(t, writes, test.ShouldHaveLength, 3)
	for _, w := range writes {
		test.That(t, w, test.ShouldResemble, []byte{'n', 0, 90})
	}
	stats := l.Stats()
	test.That(t, stats.Frames, test.ShouldEqual, 3)
	test.That(t, stats.TXBytes, test.ShouldEqual, 9)
}

func TestFrameSurvivesReopen(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0", "/dev/ttyACM1")
	l := newTestLink(t, devices, 0)

	l.Set(protocol.SlotDirection, protocol.Forward)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)
	first := devices.Port("/dev/ttyACM0")

	// Opening again moves the link and closes the old port
	test.That(t, l.Open(context.Background(), "/dev/ttyACM1", 9600), test.ShouldBeNil)
	test.That(t, first.Closed(), test.ShouldBeTrue)

	test.That(t, l.Transmit(), test.ShouldBeNil)
	test.That(t, devices.Port("/dev/ttyACM1").LastWrite(), test.ShouldResemble, []byte{'f', 0, 90})
	test.That(t, first.Writes(), test.ShouldBeEmpty)
}

func TestSetInvalidSlotPanics(t *testing.T) {
	l := newTestLink(t, serialtest.NewDevices(), 0)
	test.That(t, func() { l.Set(3, 1) }, test.ShouldPanic)
	test.That(t, func() { l.Set(-1, 1) }, test.ShouldPanic)
}

func TestDrainDiscardsReceivedBytes(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	n, err := l.Drain()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)

	devices.Port("/dev/ttyACM0").Feed([]byte("hello"))
	waitFor(t, "reader to consume", func() bool { return l.Stats().RXBytes == 5 })

	n, err = l.Drain()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 5)
	test.That(t, string(l.RecentRX(5)), test.ShouldEqual, "hello")

	n, _ = l.Drain()
	test.That(t, n, test.ShouldEqual, 0)
}

func TestDrainReportsReadErrorOnce(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	port.SetReadErr(errors.New("framing error"))
	waitFor(t, "read error", func() bool { return l.Stats().RXErrors > 0 })
	port.SetReadErr(nil)

	_, err := l.Drain()
	test.That(t, errors.Is(err, ErrTransient), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "framing error")

	// Reported once, then clean again
	waitFor(t, "reader to settle", func() bool {
		_, err := l.Drain()
		return err == nil
	})
	test.That(t, l.IsConnected(), test.ShouldBeTrue)
}

func TestTransmitErrorIsTransient(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	port.SetWriteErr(errors.New("input/output error"))

	for i := 0; i < 20; i++ {
		err := l.Transmit()
		test.That(t, errors.Is(err, ErrTransient), test.ShouldBeTrue)
		test.That(t, errors.Is(err, ErrLinkLost), test.ShouldBeFalse)
	}
	test.That(t, l.IsConnected(), test.ShouldBeTrue)
	test.That(t, l.Stats().TXErrors, test.ShouldEqual, 20)

	port.SetWriteErr(nil)
	test.That(t, l.Transmit(), test.ShouldBeNil)
	test.That(t, l.Stats().Consecutive, test.ShouldEqual, 0)
}

func TestTransmitFailuresForceClose(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 3)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	port.SetWriteErr(errors.New("device unplugged"))

	test.That(t, errors.Is(l.Transmit(), ErrLinkLost), test.ShouldBeFalse)
	test.That(t, errors.Is(l.Transmit(), ErrLinkLost), test.ShouldBeFalse)

	err := l.Transmit()
	test.That(t, errors.Is(err, ErrLinkLost), test.ShouldBeTrue)
	test.That(t, errors.Is(err, ErrTransient), test.ShouldBeTrue)
	test.That(t, l.State(), test.ShouldEqual, Closed)
	test.That(t, port.Closed(), test.ShouldBeTrue)

	// Closed again: transmit is a quiet no-op
	test.That(t, l.Transmit(), test.ShouldBeNil)
}

func TestIntermittentFailuresDoNotAccumulate(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 2)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	for i := 0; i < 5; i++ {
		port.SetWriteErr(errors.New("glitch"))
		test.That(t, errors.Is(l.Transmit(), ErrTransient), test.ShouldBeTrue)
		port.SetWriteErr(nil)
		test.That(t, l.Transmit(), test.ShouldBeNil)
	}
	test.That(t, l.IsConnected(), test.ShouldBeTrue)
}

func TestStalledWriteIsBounded(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	cfg := DefaultConfig()
	cfg.Opener = devices.Open
	cfg.MaxFailures = 3
	cfg.WriteTimeout = 30 * time.Millisecond
	l := New(cfg, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = l.Close() })
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	port.Stall()

	start := time.Now()
	err := l.Transmit()
	test.That(t, errors.Is(err, ErrTransient), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "timed out")
	test.That(t, time.Since(start), test.ShouldBeLessThan, time.Second)

	// The reader is not held up by the stuck write
	port.Feed([]byte("ok"))
	waitFor(t, "reader during stalled write", func() bool { return l.Stats().RXBytes == 2 })

	// The stuck write is not queued behind
	start = time.Now()
	err = l.Transmit()
	test.That(t, err.Error(), test.ShouldContainSubstring, "still blocked")
	test.That(t, time.Since(start), test.ShouldBeLessThan, 20*time.Millisecond)

	err = l.Transmit()
	test.That(t, errors.Is(err, ErrLinkLost), test.ShouldBeTrue)
	test.That(t, l.IsConnected(), test.ShouldBeFalse)
	test.That(t, port.Closed(), test.ShouldBeTrue)
}

func TestWriteRecoversAfterStall(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	cfg := DefaultConfig()
	cfg.Opener = devices.Open
	cfg.WriteTimeout = 30 * time.Millisecond
	l := New(cfg, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = l.Close() })
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	port.Stall()
	test.That(t, l.Transmit(), test.ShouldNotBeNil)

	port.Release()
	waitFor(t, "stuck write to finish", func() bool { return len(port.Writes()) == 1 })
	waitFor(t, "transmit to succeed", func() bool { return l.Transmit() == nil })
	test.That(t, l.Stats().Consecutive, test.ShouldEqual, 0)
	test.That(t, l.IsConnected(), test.ShouldBeTrue)
}

func TestShortWriteIsAnError(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)

	port := devices.Port("/dev/ttyACM0")
	port.ShortWrite = true
	err := l.Transmit()
	test.That(t, errors.Is(err, ErrTransient), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "incomplete write")
}

func TestStatsResetOnOpen(t *testing.T) {
	devices := serialtest.NewDevices("/dev/ttyACM0")
	l := newTestLink(t, devices, 0)
	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 9600), test.ShouldBeNil)
	test.That(t, l.Transmit(), test.ShouldBeNil)
	test.That(t, l.Stats().Frames, test.ShouldEqual, 1)

	test.That(t, l.Open(context.Background(), "/dev/ttyACM0", 19200), test.ShouldBeNil)
	test.That(t, l.Stats().Frames, test.ShouldEqual, 0)
}

func TestStateString(t *testing.T) {
	test.That(t, Closed.String(), test.ShouldEqual, "closed")
	test.That(t, Connected.String(), test.ShouldEqual, "connected")
	test.That(t, State(7).String(), test.ShouldEqual, "unknown")
}
