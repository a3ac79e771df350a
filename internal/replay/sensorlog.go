package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ubipos/internal/sensor"
)

// Log format: line-oriented text.
//
//   - Blank lines ignored.
//   - Lines starting with '#' ignored, except "# session <id>" which names the
//     recording session.
//   - Line "START" resets the origin (next record time is relative to it again).
//   - Data lines are: <t_ns>,<kind>,<x>,<y>,<z>
//     where t_ns is the sample timestamp in nanoseconds on the sensor clock,
//     kind is acc, gyro or mag, and x, y, z are the raw float32 values.
//
// Values are written with the shortest representation that parses back to the
// same float32, so a recorded stream replays bit for bit.

const sessionPrefix = "# session "

// Record is either a START marker or one sample.
type Record struct {
	At     time.Duration
	Start  bool
	Sample sensor.Sample
}

type Reader struct {
	r       io.Reader
	session string
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Session returns the session id of the last "# session" header seen by
// ReadAll, or "" if there was none.
func (rr *Reader) Session() string {
	return rr.session
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if id, ok := strings.CutPrefix(line, sessionPrefix); ok {
				rr.session = strings.TrimSpace(id)
			}
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Start: true})
			continue
		}

		smp, err := parseSampleLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		recs = append(recs, Record{At: time.Duration(smp.Timestamp), Sample: smp})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFile opens path and reads all records from it.
func ReadFile(path string) ([]Record, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	rr := NewReader(f)
	recs, err := rr.ReadAll()
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return recs, rr.Session(), nil
}

func parseSampleLine(line string) (sensor.Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return sensor.Sample{}, fmt.Errorf("invalid replay line (want 5 fields, got %d): %q", len(fields), line)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return sensor.Sample{}, fmt.Errorf("invalid replay line (empty field): %q", line)
		}
	}

	tsNs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return sensor.Sample{}, fmt.Errorf("invalid replay timestamp %q: %w", fields[0], err)
	}
	if tsNs < 0 {
		return sensor.Sample{}, fmt.Errorf("invalid replay timestamp (negative): %d", tsNs)
	}
	kind, err := sensor.ParseKind(fields[1])
	if err != nil {
		return sensor.Sample{}, fmt.Errorf("invalid replay kind: %w", err)
	}

	smp := sensor.Sample{Kind: kind, Timestamp: tsNs}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[2+i], 32)
		if err != nil {
			return sensor.Sample{}, fmt.Errorf("invalid replay value %q: %w", fields[2+i], err)
		}
		smp.Values[i] = float32(v)
	}
	return smp, nil
}

func formatValue(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

type Writer struct {
	f       *os.File
	w       *bufio.Writer
	session string
	closed  bool
}

// CreateWriter starts a new log at path. An empty session gets a fresh
// random id.
func CreateWriter(path, session string) (*Writer, error) {
	if session == "" {
		session = uuid.NewString()
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := fmt.Fprintf(bw, "%s%s\nSTART\n", sessionPrefix, session); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, session: session}, nil
}

func (ww *Writer) Session() string {
	return ww.session
}

func (ww *Writer) WriteSample(s sensor.Sample) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	if s.Kind == sensor.Unknown {
		return fmt.Errorf("cannot record sample of unknown kind")
	}
	if s.Timestamp < 0 {
		return fmt.Errorf("cannot record negative timestamp %d", s.Timestamp)
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s,%s,%s,%s\n",
		s.Timestamp, s.Kind,
		formatValue(s.Values[0]), formatValue(s.Values[1]), formatValue(s.Values[2]))
	if err != nil {
		return err
	}
	return nil
}

// Start writes a START marker, beginning a new segment.
func (ww *Writer) Start() error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	_, err := ww.w.WriteString("START\n")
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// NoSleep replays as fast as the callback allows.
type NoSleep struct{}

func (NoSleep) Sleep(time.Duration) {}

// Play replays records with their relative timing.
//
// The callback is invoked for each sample record. START markers reset the
// origin so waits never span two segments. Samples sharing a timestamp are
// delivered back to back.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func Play(records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(s sensor.Sample) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("speedMultiplier must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Start {
				haveLast = false
				continue
			}

			if haveLast {
				wait := r.At - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speedMultiplier)
				if wait > 0 {
					sleeper.Sleep(wait)
				}
			}

			if err := cb(r.Sample); err != nil {
				return err
			}

			lastAt = r.At
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
