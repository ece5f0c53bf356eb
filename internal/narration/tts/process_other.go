//go:build !unix

package tts

import (
	"errors"
	"os"
)

// Windows has no SIGTERM, so the process is killed outright.
func interrupt(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
