package devserver

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"
)

// Starter runs a shell command once, after the first successful build, and
// keeps it running until Stop.
type Starter struct {
	command string
	stdout  io.Writer
	stderr  io.Writer

	mu      sync.Mutex
	started bool
	cmd     *exec.Cmd
	done    chan struct{}
}

func NewStarter(command string) *Starter {
	return &Starter{
		command: command,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

// Start launches the command on the first call, later calls do nothing
func (s *Starter) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true

	cmd := exec.Command("sh", "-c", s.command) // #nosec G204 - command comes from the local CLI
	cmd.Stdin = nil
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		return err
	}

	s.cmd = cmd
	s.done = make(chan struct{})

	log.Info().Str("command", s.command).Int("pid", cmd.Process.Pid).Msg("Started command")

	go func() {
		defer close(s.done)
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Str("command", s.command).Msg("Command exited")
			return
		}
		log.Info().Str("command", s.command).Msg("Command exited")
	}()

	return nil
}

// Stop kills the command if it is still running and waits for it to exit
func (s *Starter) Stop() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-done
	return nil
}

// Done is closed when the started command exits, nil before Start
func (s *Starter) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
