package tacho

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/gotacho/pkg/velocity"
)

var (
	// ErrNotReport is returned for lines that are not measurements, such as
	// the banner.
	ErrNotReport = errors.New("not a report line")
	// ErrBadReport is returned for report lines that cannot be parsed.
	ErrBadReport = errors.New("malformed report line")
)

// Report is one tick's measurement as received from the board.
type Report struct {
	velocity.Sample
	Timestamp time.Time
}

// Speed returns the reported speed in rev/s.
func (r Report) Speed() float64 {
	return float64(r.Thousandths) / 1000
}

// ParseReport parses a report line. Format:
//
//	Count: <int>, Diff: <int>, Speed: [-]<whole>.<3 digits> rev/s, Direction: <name>
//
// The timestamp is left zero.
func ParseReport(line string) (Report, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "Count: ") {
		return Report{}, ErrNotReport
	}

	parts := strings.Split(line, ", ")
	if len(parts) != 4 {
		return Report{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrBadReport, len(parts))
	}

	count, err := parseField(parts[0], "Count: ")
	if err != nil {
		return Report{}, err
	}
	diff, err := parseField(parts[1], "Diff: ")
	if err != nil {
		return Report{}, err
	}

	speed, ok := strings.CutPrefix(parts[2], "Speed: ")
	if !ok {
		return Report{}, fmt.Errorf("%w: missing speed", ErrBadReport)
	}
	speed, ok = strings.CutSuffix(speed, " rev/s")
	if !ok {
		return Report{}, fmt.Errorf("%w: missing speed unit", ErrBadReport)
	}
	thousandths, err := parseSpeed(speed)
	if err != nil {
		return Report{}, err
	}

	name, ok := strings.CutPrefix(parts[3], "Direction: ")
	if !ok {
		return Report{}, fmt.Errorf("%w: missing direction", ErrBadReport)
	}
	dir, err := parseDirection(name)
	if err != nil {
		return Report{}, err
	}

	return Report{Sample: velocity.Sample{
		Count:       count,
		Delta:       diff,
		Thousandths: thousandths,
		Direction:   dir,
	}}, nil
}

func parseField(field, prefix string) (int32, error) {
	v, ok := strings.CutPrefix(field, prefix)
	if !ok {
		return 0, fmt.Errorf("%w: expected %q", ErrBadReport, prefix)
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %w", ErrBadReport, strings.TrimSuffix(prefix, ": "), err)
	}
	return int32(n), nil
}

// parseSpeed reads "[-]W.FFF" into thousandths.
func parseSpeed(s string) (int32, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, ok := strings.Cut(s, ".")
	if !ok || len(frac) != 3 || whole == "" || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("%w: speed %q", ErrBadReport, s)
	}
	w, err := strconv.ParseUint(whole, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: speed %w", ErrBadReport, err)
	}
	f, err := strconv.ParseUint(frac, 10, 10)
	if err != nil {
		return 0, fmt.Errorf("%w: speed %w", ErrBadReport, err)
	}
	v := int64(w)*1000 + int64(f)
	if neg {
		v = -v
	}
	if v < -1<<31 || v > 1<<31-1 {
		return 0, fmt.Errorf("%w: speed %q out of range", ErrBadReport, s)
	}
	return int32(v), nil
}

func parseDirection(name string) (velocity.Direction, error) {
	for _, d := range []velocity.Direction{velocity.CW, velocity.CCW, velocity.Stopped} {
		if name == d.String() {
			return d, nil
		}
	}
	return velocity.Stopped, fmt.Errorf("%w: direction %q", ErrBadReport, name)
}
