// Package instance loads job-shop instances from files: YAML or JSON
// documents, and the OR-Library text format used by classic benchmarks.
package instance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/me/goshop/pkg/model"
	"gopkg.in/yaml.v3"
)

// Format identifies an instance file format.
type Format string

const (
	FormatDocument Format = "document" // YAML or JSON
	FormatORLib    Format = "orlib"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatDocument
	default:
		return FormatORLib
	}
}

// Load reads and validates the instance at path. The request is named
// after the file unless the document names it.
func Load(path string) (*model.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instance: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Read(f, DetectFormat(path), name)
}

// Read parses an instance in the given format and validates it.
func Read(r io.Reader, format Format, name string) (*model.Request, error) {
	var (
		req *model.Request
		err error
	)
	switch format {
	case FormatDocument:
		req, err = parseDocument(r)
	case FormatORLib:
		req, err = parseORLib(r)
	default:
		return nil, fmt.Errorf("unknown instance format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		req.Name = name
	}
	if apiErr := req.Validate(); apiErr != nil {
		return nil, apiErr
	}
	return req, nil
}

// document mirrors model.Request with optional ids, which default to the
// entry's position.
type document struct {
	Name string `yaml:"name"`
	Jobs []struct {
		ID    *int   `yaml:"id"`
		Name  string `yaml:"name"`
		Tasks []struct {
			ID       *int            `yaml:"id"`
			Name     string          `yaml:"name"`
			Machine  model.MachineID `yaml:"machine"`
			Duration int64           `yaml:"duration"`
		} `yaml:"tasks"`
	} `yaml:"jobs"`
}

func parseDocument(r io.Reader) (*model.Request, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse instance document: %w", err)
	}

	req := &model.Request{Name: doc.Name, Jobs: make([]model.Job, len(doc.Jobs))}
	for ji, dj := range doc.Jobs {
		job := model.Job{ID: ji, Name: dj.Name, Tasks: make([]model.Task, len(dj.Tasks))}
		if dj.ID != nil {
			job.ID = *dj.ID
		}
		for ti, dt := range dj.Tasks {
			task := model.Task{ID: ti, Name: dt.Name, Machine: dt.Machine, Duration: dt.Duration}
			if dt.ID != nil {
				task.ID = *dt.ID
			}
			job.Tasks[ti] = task
		}
		req.Jobs[ji] = job
	}
	return req, nil
}

// parseORLib reads the OR-Library job-shop format: a "<jobs> <machines>"
// header followed by one line per job of "<machine> <duration>" pairs.
// Lines starting with '#' and blank lines are ignored, as is any free text
// before the header.
func parseORLib(r io.Reader) (*model.Request, error) {
	sc := bufio.NewScanner(r)
	lineNo := 0
	nextFields := func() ([]string, bool) {
		for sc.Scan() {
			lineNo++
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return strings.Fields(line), true
		}
		return nil, false
	}

	var nJobs, nMachines int
	for {
		fields, ok := nextFields()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read instance: %w", err)
			}
			return nil, fmt.Errorf("instance header not found")
		}
		if len(fields) != 2 {
			continue
		}
		j, errJ := strconv.Atoi(fields[0])
		m, errM := strconv.Atoi(fields[1])
		if errJ == nil && errM == nil {
			nJobs, nMachines = j, m
			break
		}
	}
	if nJobs < 0 || nMachines <= 0 {
		return nil, fmt.Errorf("line %d: invalid header %d jobs, %d machines", lineNo, nJobs, nMachines)
	}

	req := &model.Request{Jobs: make([]model.Job, nJobs)}
	for j := 0; j < nJobs; j++ {
		fields, ok := nextFields()
		if !ok {
			return nil, fmt.Errorf("expected %d jobs, found %d", nJobs, j)
		}
		if len(fields) != 2*nMachines {
			return nil, fmt.Errorf("line %d: job %d has %d values, want %d", lineNo, j, len(fields), 2*nMachines)
		}
		job := model.Job{ID: j, Tasks: make([]model.Task, nMachines)}
		for k := 0; k < nMachines; k++ {
			machine, err := strconv.Atoi(fields[2*k])
			if err != nil {
				return nil, fmt.Errorf("line %d: machine %q: %w", lineNo, fields[2*k], err)
			}
			dur, err := strconv.ParseInt(fields[2*k+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: duration %q: %w", lineNo, fields[2*k+1], err)
			}
			job.Tasks[k] = model.Task{ID: k, Machine: model.MachineID(strconv.Itoa(machine)), Duration: dur}
		}
		req.Jobs[j] = job
	}
	return req, nil
}
