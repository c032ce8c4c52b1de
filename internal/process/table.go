package process

import (
	"errors"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// SystemTable reads the live process table.
type SystemTable struct{}

func (SystemTable) Running(name string) (bool, error) {
	procs, err := matching(name)
	if err != nil {
		return false, err
	}
	return len(procs) > 0, nil
}

func (SystemTable) Kill(name string) error {
	procs, err := matching(name)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range procs {
		if err := p.Kill(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func matching(name string) ([]*process.Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	var out []*process.Process
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(pname, name) {
			out = append(out, p)
		}
	}
	return out, nil
}
