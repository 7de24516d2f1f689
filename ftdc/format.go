package ftdc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/logging"
)

const (
	schemaMarker = 0x1
	// epsilon is the smallest change still recorded as a change.
	epsilon = 1e-9
)

var errNotStruct = errors.New("stats object is not a struct")

type schema struct {
	// statsers lists the statser names in the order their fields appear in fields.
	statsers []string
	// fields are the fully qualified metric names, e.g: "geom.ErrorR.X".
	fields []string
}

func (s *schema) equal(other *schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

func writeSchema(s *schema, output io.Writer) error {
	if _, err := output.Write([]byte{schemaMarker}); err != nil {
		return errors.Wrap(err, "writing schema marker")
	}
	// Encode appends the newline the format expects.
	if err := json.NewEncoder(output).Encode(s.fields); err != nil {
		return errors.Wrap(err, "writing schema")
	}
	return nil
}

func numDiffBytes(numFields int) int {
	numBits := numFields + 1
	return 1 + (numBits-1)/8
}

func changed(diff float32) bool {
	return math.Abs(float64(diff)) > epsilon
}

// writeDatum writes one sample. `prev` is either empty, meaning all zeroes, or as long as `curr`.
func writeDatum(nanos int64, prev, curr []float32, output io.Writer) error {
	if len(prev) != 0 && len(prev) != len(curr) {
		return errors.Errorf("sample has %d values but the previous one had %d", len(curr), len(prev))
	}

	diffs := make([]float32, len(curr))
	copy(diffs, curr)
	if len(prev) != 0 {
		for i := range curr {
			diffs[i] = curr[i] - prev[i]
		}
	}

	diffBits := make([]byte, numDiffBytes(len(curr)))
	for i, diff := range diffs {
		if changed(diff) {
			bit := i + 1
			diffBits[bit/8] |= 1 << (bit % 8)
		}
	}
	if _, err := output.Write(diffBits); err != nil {
		return errors.Wrap(err, "writing diff bits")
	}
	if err := binary.Write(output, binary.BigEndian, nanos); err != nil {
		return errors.Wrap(err, "writing time")
	}
	for i, diff := range diffs {
		if !changed(diff) {
			continue
		}
		if err := binary.Write(output, binary.BigEndian, curr[i]); err != nil {
			return errors.Wrap(err, "writing values")
		}
	}
	return nil
}

func deref(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

func isScalar(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// fieldsFor returns the metric names of a stats value. Nested structs are joined with dots and
// array elements are named by their index. Fields of other kinds are skipped.
func fieldsFor(item reflect.Value) ([]string, error) {
	v := deref(item)
	if v.Kind() != reflect.Struct {
		return nil, errNotStruct
	}
	var fields []string
	for i := 0; i < v.NumField(); i++ {
		if !v.Type().Field(i).IsExported() {
			continue
		}
		sub, err := namesFor(v.Type().Field(i).Name, deref(v.Field(i)))
		if err != nil {
			return nil, err
		}
		fields = append(fields, sub...)
	}
	return fields, nil
}

func namesFor(name string, v reflect.Value) ([]string, error) {
	switch {
	case isScalar(v.Kind()):
		return []string{name}, nil
	case v.Kind() == reflect.Struct:
		sub, err := fieldsFor(v)
		if err != nil {
			return nil, err
		}
		for i := range sub {
			sub[i] = name + "." + sub[i]
		}
		return sub, nil
	case v.Kind() == reflect.Array:
		var names []string
		for i := 0; i < v.Len(); i++ {
			sub, err := namesFor(fmt.Sprintf("%s.%d", name, i), deref(v.Index(i)))
			if err != nil {
				return nil, err
			}
			names = append(names, sub...)
		}
		return names, nil
	default:
		return nil, nil
	}
}

// flattenStruct returns the values of a stats value in the order fieldsFor names them.
func flattenStruct(item reflect.Value) []float32 {
	v := deref(item)
	if v.Kind() != reflect.Struct {
		return nil
	}
	var numbers []float32
	for i := 0; i < v.NumField(); i++ {
		if !v.Type().Field(i).IsExported() {
			continue
		}
		numbers = appendValue(numbers, deref(v.Field(i)))
	}
	return numbers
}

func appendValue(numbers []float32, v reflect.Value) []float32 {
	switch {
	case v.CanUint():
		return append(numbers, float32(v.Uint()))
	case v.CanInt():
		return append(numbers, float32(v.Int()))
	case v.CanFloat():
		return append(numbers, float32(v.Float()))
	case v.Kind() == reflect.Bool:
		if v.Bool() {
			return append(numbers, 1)
		}
		return append(numbers, 0)
	case v.Kind() == reflect.Struct:
		return append(numbers, flattenStruct(v)...)
	case v.Kind() == reflect.Array:
		for i := 0; i < v.Len(); i++ {
			numbers = appendValue(numbers, deref(v.Index(i)))
		}
		return numbers
	default:
		return numbers
	}
}

// FlatDatum is one sample with fully qualified metric names.
type FlatDatum struct {
	// Time is in nanoseconds since the epoch.
	Time     int64
	Readings []Reading
}

// Reading is a metric name paired with a value.
type Reading struct {
	MetricName string
	Value      float32
}

// ConvertedTime returns Time in UTC.
func (d *FlatDatum) ConvertedTime() time.Time {
	return time.Unix(0, d.Time).UTC()
}

// Value returns the reading for `metric`.
func (d *FlatDatum) Value(metric string) (float32, bool) {
	for _, r := range d.Readings {
		if r.MetricName == metric {
			return r.Value, true
		}
	}
	return 0, false
}

// Parse reads every sample from `rawReader`. On error the samples read so far are returned too.
func Parse(rawReader io.Reader) ([]FlatDatum, error) {
	logger := logging.NewBlankLogger("ftdc")
	return ParseWithLogger(rawReader, logger)
}

// ParseWithLogger is Parse with debug output sent to `logger`.
func ParseWithLogger(rawReader io.Reader, logger logging.Logger) ([]FlatDatum, error) {
	ret := make([]FlatDatum, 0)
	reader := bufio.NewReader(rawReader)

	var (
		s    *schema
		prev []float32
	)
	for {
		peek, err := reader.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ret, nil
			}
			return ret, err
		}

		if peek[0] == schemaMarker {
			// Peek succeeded so this cannot fail.
			_, _ = reader.ReadByte()
			s, reader, err = readSchema(reader)
			if err != nil {
				return ret, err
			}
			logger.Debugw("read schema", "fields", len(s.fields))
			prev = nil
			continue
		}
		if s == nil {
			return nil, errors.New("telemetry must start with a schema")
		}

		diffed, err := readDiffBits(reader, s)
		if err != nil {
			return ret, err
		}
		var nanos int64
		if err := binary.Read(reader, binary.BigEndian, &nanos); err != nil {
			return ret, errors.Wrap(err, "reading time")
		}
		data, err := readData(reader, s, diffed, prev)
		if err != nil {
			return ret, err
		}
		prev = data
		ret = append(ret, FlatDatum{Time: nanos, Readings: s.zip(data)})
	}
}

// readSchema decodes the JSON field list and returns a reader positioned after its newline.
func readSchema(reader *bufio.Reader) (*schema, *bufio.Reader, error) {
	decoder := json.NewDecoder(reader)
	var fields []string
	if err := decoder.Decode(&fields); err != nil {
		return nil, nil, errors.Wrap(err, "reading schema")
	}

	// The decoder may have buffered bytes past the JSON value.
	rest := bufio.NewReader(io.MultiReader(decoder.Buffered(), reader))
	if ch, err := rest.ReadByte(); err != nil || ch != '\n' {
		return nil, nil, errors.New("schema is not terminated by a newline")
	}

	s := &schema{fields: fields}
	seen := map[string]struct{}{}
	for _, field := range fields {
		dot := strings.IndexByte(field, '.')
		if dot < 0 {
			return nil, nil, errors.Errorf("metric %q has no statser name", field)
		}
		name := field[:dot]
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			s.statsers = append(s.statsers, name)
		}
	}
	return s, rest, nil
}

func readDiffBits(reader *bufio.Reader, s *schema) ([]int, error) {
	diffBytes := make([]byte, numDiffBytes(len(s.fields)))
	if _, err := io.ReadFull(reader, diffBytes); err != nil {
		return nil, errors.Wrap(err, "reading diff bits")
	}
	var ret []int
	for i := range s.fields {
		bit := i + 1
		if diffBytes[bit/8]&(1<<(bit%8)) != 0 {
			ret = append(ret, i)
		}
	}
	return ret, nil
}

// readData reads one value per index in `diffed` and fills the rest from `prev`, or zero if
// `prev` is nil.
func readData(reader *bufio.Reader, s *schema, diffed []int, prev []float32) ([]float32, error) {
	if prev != nil && len(prev) != len(s.fields) {
		return nil, errors.Errorf("previous sample has %d values but the schema has %d", len(prev), len(s.fields))
	}
	ret := make([]float32, len(s.fields))
	copy(ret, prev)
	for _, idx := range diffed {
		if err := binary.Read(reader, binary.BigEndian, &ret[idx]); err != nil {
			return nil, errors.Wrap(err, "reading values")
		}
	}
	return ret, nil
}

func (s *schema) zip(data []float32) []Reading {
	ret := make([]Reading, len(s.fields))
	for i, name := range s.fields {
		ret[i] = Reading{name, data[i]}
	}
	return ret
}
