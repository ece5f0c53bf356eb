//go:build unix

package tts

import (
	"errors"
	"os"
	"syscall"
)

func interrupt(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := p.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
