package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rcpanel/host/link"
	"rcpanel/protocol"
)

// sendOptions describe a fixed-frame transmission
type sendOptions struct {
	Port     string
	Baud     int
	Frame    protocol.Frame
	Interval time.Duration
	Duration time.Duration
}

// sendFrames opens the link, repeats opts.Frame every Interval for Duration (or
// until ctx is done), then sends a single stop frame and closes the link.
// The stop frame goes out even when ctx was cancelled.
func sendFrames(ctx context.Context, l *link.Link, logger *zap.SugaredLogger, opts sendOptions) (err error) {
	if opts.Interval <= 0 {
		return errors.New("send interval must be positive")
	}
	if err := l.Open(ctx, opts.Port, opts.Baud); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, l.Close())
	}()

	for slot := 0; slot < protocol.FrameSize; slot++ {
		l.Set(slot, opts.Frame.Get(slot))
	}
	logger.Infow("sending", "frame", opts.Frame.String(), "port", opts.Port, "for", opts.Duration)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(opts.Duration)
	defer deadline.Stop()

	sendErr := l.Transmit()
loop:
	for !errors.Is(sendErr, link.ErrLinkLost) {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline.C:
			break loop
		case <-ticker.C:
			if _, err := l.Drain(); err != nil {
				logger.Debugw("drain", "error", err)
			}
			sendErr = l.Transmit()
		}
	}
	if errors.Is(sendErr, link.ErrLinkLost) {
		return sendErr
	}

	l.Set(protocol.SlotDirection, protocol.Neutral)
	l.Set(protocol.SlotSpeed, 0)
	l.Set(protocol.SlotTurn, protocol.Straight)
	if err := l.Transmit(); err != nil {
		return errors.Wrap(err, "sending stop frame")
	}

	st := l.Stats()
	logger.Infow("send finished", "frames", st.Frames, "tx_errors", st.TXErrors, "rx_bytes", st.RXBytes)
	return nil
}
