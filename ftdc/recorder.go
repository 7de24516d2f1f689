package ftdc

import (
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
)

// Statser is anything that can be sampled. Stats must return a struct, or a pointer to one, with
// the same shape every call.
type Statser interface {
	Stats() any
}

type namedStatser struct {
	name    string
	statser Statser
}

type rotator interface {
	Rotate() error
}

// countingWriter tracks how many bytes went to the current file.
type countingWriter struct {
	w       io.Writer
	written int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	return n, err
}

// Recorder samples its statsers on every Record call and appends the samples to an output.
type Recorder struct {
	mu       sync.Mutex
	logger   logging.Logger
	out      *countingWriter
	closer   io.Closer
	rotator  rotator
	maxBytes int64

	statsers []namedStatser
	schema   *schema
	// schemaWritten is false until the current schema is in the current file.
	schemaWritten bool
	prev          []float32
	samples       int
}

// NewRecorder returns a recorder writing to `w`.
func NewRecorder(w io.Writer, logger logging.Logger) *Recorder {
	return &Recorder{logger: logger, out: &countingWriter{w: w}}
}

// NewFileRecorder returns a recorder writing to `path`. Once a file grows past `maxSizeMB` it is
// rotated and compressed; every file starts with a schema so each can be parsed on its own.
func NewFileRecorder(path string, maxSizeMB int, logger logging.Logger) *Recorder {
	file := &lumberjack.Logger{
		Filename: path,
		// The recorder rotates before lumberjack would, at a sample boundary.
		MaxSize:    maxSizeMB + 1,
		MaxBackups: 5,
		Compress:   true,
	}
	r := NewRecorder(file, logger)
	r.closer = file
	r.rotator = file
	r.maxBytes = int64(maxSizeMB) * 1024 * 1024
	return r
}

// Add registers a statser under `name`. Names must be unique and must not contain dots.
func (r *Recorder) Add(name string, statser Statser) error {
	if name == "" || strings.Contains(name, ".") {
		return errors.Errorf("invalid statser name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.statsers {
		if existing.name == name {
			return errors.Errorf("statser %q already added", name)
		}
	}
	if _, err := fieldsFor(reflect.ValueOf(statser.Stats())); err != nil {
		return errors.Wrapf(err, "statser %q", name)
	}
	r.statsers = append(r.statsers, namedStatser{name, statser})
	r.schema = nil
	return nil
}

// Remove unregisters the statser called `name`.
func (r *Recorder) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.statsers {
		if existing.name == name {
			r.statsers = append(r.statsers[:i], r.statsers[i+1:]...)
			r.schema = nil
			return
		}
	}
}

// Samples returns the number of samples written.
func (r *Recorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Record samples every statser and writes the values stamped with `t`.
func (r *Recorder) Record(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statsers) == 0 {
		return nil
	}

	s := &schema{}
	var values []float32
	for _, ns := range r.statsers {
		stats := reflect.ValueOf(ns.statser.Stats())
		fields, err := fieldsFor(stats)
		if err != nil {
			return errors.Wrapf(err, "statser %q", ns.name)
		}
		s.statsers = append(s.statsers, ns.name)
		for _, field := range fields {
			s.fields = append(s.fields, ns.name+"."+field)
		}
		values = append(values, flattenStruct(stats)...)
	}
	if len(values) != len(s.fields) {
		return errors.Errorf("sampled %d values for %d metrics", len(values), len(s.fields))
	}

	if r.rotator != nil && r.maxBytes > 0 && r.out.written >= r.maxBytes {
		if err := r.rotator.Rotate(); err != nil {
			return errors.Wrap(err, "rotating telemetry file")
		}
		r.logger.Debugw("rotated telemetry file", "bytes", r.out.written, "samples", r.samples)
		r.out.written = 0
		r.schemaWritten = false
	}

	if !s.equal(r.schema) || !r.schemaWritten {
		if err := writeSchema(s, r.out); err != nil {
			return err
		}
		r.schema = s
		r.schemaWritten = true
		r.prev = nil
	}
	if err := writeDatum(t.UnixNano(), r.prev, values, r.out); err != nil {
		return err
	}
	r.prev = values
	r.samples++
	return nil
}

// Close closes the output file, if the recorder owns one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
