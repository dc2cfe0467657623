package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Command is a fully resolved process creation request.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
	// Visible starts without pipes in a console of the child's own.
	Visible bool
	// CmdLine, when set, is passed verbatim as the Windows command line.
	// cmd.exe does not follow the usual argument quoting rules.
	CmdLine string
}

// Starter creates processes.
type Starter interface {
	Start(cmd Command) (*Child, error)
}

// DirError reports an unusable working directory. It is never a not-found
// error in the sense of IsNotFound.
type DirError struct {
	Dir string
	Err error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("working directory %q: %v", e.Dir, e.Err)
}

func (e *DirError) Unwrap() error { return e.Err }

// ExecStarter starts real OS processes with os/exec.
type ExecStarter struct{}

// Start launches c. Piped launches get all three streams; visible launches
// get none.
func (ExecStarter) Start(c Command) (*Child, error) {
	if c.Dir != "" {
		info, err := os.Stat(c.Dir)
		if err != nil {
			return nil, &DirError{Dir: c.Dir, Err: err}
		}
		if !info.IsDir() {
			return nil, &DirError{Dir: c.Dir, Err: errors.New("not a directory")}
		}
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	configure(cmd, c)

	if c.Visible {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return NewChild(cmd.Process.Pid, c.Path, execHandle{cmd}, nil, nil, nil), nil
	}

	p, err := openPipes()
	if err != nil {
		return nil, err
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = p.inR, p.outW, p.errW

	if err := cmd.Start(); err != nil {
		p.closeAll()
		return nil, err
	}
	p.closeChildEnds()

	return NewChild(cmd.Process.Pid, c.Path, execHandle{cmd}, p.inW, p.outR, p.errR), nil
}

type pipeSet struct {
	inR, inW   *os.File
	outR, outW *os.File
	errR, errW *os.File
}

func openPipes() (*pipeSet, error) {
	p := &pipeSet{}
	var err error
	if p.inR, p.inW, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if p.outR, p.outW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if p.errR, p.errW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	return p, nil
}

func (p *pipeSet) closeChildEnds() {
	closeFiles(p.inR, p.outW, p.errW)
}

func (p *pipeSet) closeAll() {
	closeFiles(p.inR, p.inW, p.outR, p.outW, p.errR, p.errW)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

type execHandle struct {
	cmd *exec.Cmd
}

func (h execHandle) Kill() error {
	return killTree(h.cmd.Process)
}

func (h execHandle) Wait() error {
	return h.cmd.Wait()
}
