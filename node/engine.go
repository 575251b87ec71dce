package main

import (
	"bytes"
	"context"
)

// Fragment is one plaintext piece of a streamed inference response. A
// fragment with Err set terminates the stream.
type Fragment struct {
	Data []byte
	Err  error
}

// Engine produces a lazy, finite, non-restartable sequence of plaintext
// fragments for a decrypted prompt. The real model runtime lives outside
// this process; implementations adapt it to this interface. The returned
// channel is closed after the last fragment.
type Engine interface {
	Generate(ctx context.Context, sessionID string, prompt []byte) (<-chan Fragment, error)
}

// EchoEngine is the development engine: it streams the prompt back one word
// at a time. Used when no model runtime is attached, and by the tests.
type EchoEngine struct{}

var _ Engine = (*EchoEngine)(nil)

func (e *EchoEngine) Generate(ctx context.Context, sessionID string, prompt []byte) (<-chan Fragment, error) {
	words := bytes.Fields(prompt)
	out := make(chan Fragment)
	go func() {
		defer close(out)
		for _, w := range words {
			select {
			case out <- Fragment{Data: w}:
			case <-ctx.Done():
				out <- Fragment{Err: ctx.Err()}
				return
			}
		}
	}()
	return out, nil
}
