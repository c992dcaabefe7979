package host

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/toolchain"
)

var listeningPattern = regexp.MustCompile(`Listening on port (\d+)`)

// ParseListening extracts the port from the host's readiness line.
func ParseListening(line string) (int, bool) {
	m := listeningPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// ProcessConfig defines how to start the host process.
type ProcessConfig struct {
	// Command is the executable to run. Relative commands are resolved
	// with Resolver.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory.
	WorkDir string

	// Resolver locates the runtime holding Command.
	Resolver toolchain.Resolver
}

// Process is a running host process that announced its port.
type Process struct {
	cmd  *exec.Cmd
	port int
	log  *logrus.Entry

	exited  chan struct{}
	exitErr error

	stopOnce sync.Once
}

// StartProcess spawns the host and waits until it prints its listening
// line. It fails with ErrHostExited if the process exits first. There is
// no timeout; cancel ctx to give up.
func StartProcess(ctx context.Context, cfg ProcessConfig, log *logrus.Entry) (*Process, error) {
	command, err := toolchain.LookPath(cfg.Resolver, cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("locate host: %w", err)
	}

	cmd := exec.Command(command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Dir = cfg.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := log.WriterLevel(logrus.DebugLevel)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stderr.Close()
		return nil, fmt.Errorf("start process: %w", err)
	}

	p := &Process{cmd: cmd, log: log, exited: make(chan struct{})}
	ready := make(chan int, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		announced := false
		for scanner.Scan() {
			line := scanner.Text()
			if !announced {
				if port, ok := ParseListening(line); ok {
					announced = true
					ready <- port
					continue
				}
			}
			log.Debug(line)
		}
		p.exitErr = cmd.Wait()
		stderr.Close()
		close(p.exited)
	}()

	select {
	case port := <-ready:
		p.port = port
		log.WithField("port", port).Info("host listening")
		return p, nil
	case <-p.exited:
		return nil, fmt.Errorf("%w before listening: %v", ErrHostExited, p.exitErr)
	case <-ctx.Done():
		p.Stop()
		return nil, ctx.Err()
	}
}

// Port returns the TCP port the host listens on.
func (p *Process) Port() int { return p.port }

// Exited is closed when the process exits.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Stop kills the process and waits for it to exit.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	})
	<-p.exited
	return nil
}

// Connection is an established host connection and the means to tear it
// down.
type Connection struct {
	Conn net.Conn
	Stop func() error
}

// Launcher establishes host connections.
type Launcher interface {
	Launch(ctx context.Context) (Connection, error)
}

// ProcessLauncher spawns the host process and dials its port.
type ProcessLauncher struct {
	Config ProcessConfig
	Log    *logrus.Entry
}

// Launch starts a process and connects to it.
func (l ProcessLauncher) Launch(ctx context.Context) (Connection, error) {
	proc, err := StartProcess(ctx, l.Config, l.Log)
	if err != nil {
		return Connection{}, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(proc.Port())))
	if err != nil {
		proc.Stop()
		return Connection{}, fmt.Errorf("dial host: %w", err)
	}
	return Connection{Conn: conn, Stop: proc.Stop}, nil
}
