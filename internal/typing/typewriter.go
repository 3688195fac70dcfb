// Package typing paces text out in small pieces to simulate incremental typing.
package typing

import (
	"context"
	"io"
	"time"
)

const DefaultDelay = 5 * time.Millisecond

// Typewriter emits text Chunk runes at a time with Delay between pieces.
// The zero value emits one rune at a time without waiting.
type Typewriter struct {
	Delay time.Duration
	Chunk int
}

// Emit calls fn for each piece of text. It stops early when ctx is done or fn fails.
func (t Typewriter) Emit(ctx context.Context, text string, fn func(chunk string) error) error {
	size := t.Chunk
	if size < 1 {
		size = 1
	}
	runes := []rune(text)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for start := 0; start < len(runes); start += size {
		if start > 0 && t.Delay > 0 {
			if timer == nil {
				timer = time.NewTimer(t.Delay)
			} else {
				timer.Reset(t.Delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if err := fn(string(runes[start:end])); err != nil {
			return err
		}
	}
	return nil
}

// Type writes text to w piece by piece.
func (t Typewriter) Type(ctx context.Context, w io.Writer, text string) error {
	return t.Emit(ctx, text, func(chunk string) error {
		_, err := io.WriteString(w, chunk)
		return err
	})
}
