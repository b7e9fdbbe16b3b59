package queue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Identity names one worker process: hostname.pid.epochSeconds.epochFraction.
// It is generated once and used as the key into the activity and current maps.
type Identity struct {
	Hostname string
	PID      int
	Started  time.Time
}

// NewIdentity truncates started to microseconds, the precision of the
// encoded fraction.
func NewIdentity(hostname string, pid int, started time.Time) Identity {
	return Identity{Hostname: hostname, PID: pid, Started: started.Truncate(time.Microsecond)}
}

func (id Identity) String() string {
	return fmt.Sprintf("%s.%d.%d.%06d",
		id.Hostname, id.PID, id.Started.Unix(), id.Started.Nanosecond()/int(time.Microsecond))
}

// ParseIdentity recovers hostname, pid and start time from a worker id.
// Hostnames may themselves contain dots, so the id is split from the right.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 4 {
		return Identity{}, queueErrors.New(ErrBadIdentity).WithDetail("workerid", s)
	}
	n := len(parts)
	pid, err := strconv.Atoi(parts[n-3])
	if err != nil {
		return Identity{}, queueErrors.NewWithCause(ErrBadIdentity, err).WithDetail("workerid", s)
	}
	secs, err := strconv.ParseInt(parts[n-2], 10, 64)
	if err != nil {
		return Identity{}, queueErrors.NewWithCause(ErrBadIdentity, err).WithDetail("workerid", s)
	}
	frac, err := parseFraction(parts[n-1])
	if err != nil {
		return Identity{}, queueErrors.NewWithCause(ErrBadIdentity, err).WithDetail("workerid", s)
	}
	return Identity{
		Hostname: strings.Join(parts[:n-3], "."),
		PID:      pid,
		Started:  time.Unix(secs, frac),
	}, nil
}

// parseFraction reads the digits after the decimal point as nanoseconds.
func parseFraction(digits string) (int64, error) {
	if len(digits) > 9 {
		digits = digits[:9]
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	for i := len(digits); i < 9; i++ {
		n *= 10
	}
	return n, nil
}

// Timestamps are stored as decimal epoch seconds with microsecond precision.
func formatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

func parseTime(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(int64(math.Round(f * 1e6))), nil
}
