package snowflake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Custom epoch: January 1, 2025 00:00:00 UTC. Matches the server so locally
// assigned ids sort alongside fetched ones.
const epoch int64 = 1735689600000

// Bit layout.
const (
	workerIDBits  = 5
	processIDBits = 5
	sequenceBits  = 12

	maxWorkerID  = (1 << workerIDBits) - 1
	maxProcessID = (1 << processIDBits) - 1
	maxSequence  = (1 << sequenceBits) - 1

	workerIDShift  = sequenceBits + processIDBits
	processIDShift = sequenceBits
	timestampShift = sequenceBits + processIDBits + workerIDBits
)

// ID is a snowflake ID that marshals to JSON as a string and accepts either
// a string or a number when unmarshaling.
type ID int64

func (id ID) Int64() int64 {
	return int64(id)
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(id), 10))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if nerr := json.Unmarshal(data, &n); nerr != nil {
			return fmt.Errorf("snowflake: cannot unmarshal %s: %w", string(data), err)
		}
		*id = ID(n)
		return nil
	}
	n, err := Parse(s)
	if err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// Parse converts a decimal id string. Zero and negative values are rejected
// since no entity is ever assigned them.
func Parse(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snowflake: invalid id string %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("snowflake: id must be positive, got %d", n)
	}
	return n, nil
}

// Generator produces unique, increasing snowflake IDs.
type Generator struct {
	mu        sync.Mutex
	workerID  int64
	processID int64
	sequence  int64
	lastTime  int64
	now       func() time.Time
}

// NewGenerator creates a generator with the given worker and process IDs.
// Both must be in the range [0, 31].
func NewGenerator(workerID, processID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("snowflake: workerID must be between 0 and %d", maxWorkerID)
	}
	if processID < 0 || processID > maxProcessID {
		return nil, fmt.Errorf("snowflake: processID must be between 0 and %d", maxProcessID)
	}
	return &Generator{
		workerID:  workerID,
		processID: processID,
		now:       time.Now,
	}, nil
}

// SetClock replaces the time source. Intended for tests.
func (g *Generator) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Generate returns the next unique snowflake ID.
func (g *Generator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextLocked(0)
}

// GenerateAfter returns an ID strictly greater than floor. Used when a
// channel already holds ids minted by the server whose clock may be ahead.
func (g *Generator) GenerateAfter(floor int64) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextLocked(floor)
}

func (g *Generator) nextLocked(floor int64) ID {
	now := g.now().UnixMilli() - epoch
	if minTime := floor >> timestampShift; now < minTime {
		now = minTime
	}
	if now < g.lastTime {
		now = g.lastTime
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond; borrow the next one.
			now++
		}
	} else {
		g.sequence = 0
	}

	g.lastTime = now
	id := g.compose(now)
	if id <= floor {
		// floor sits in the same millisecond with a higher sequence.
		g.lastTime = now + 1
		g.sequence = 0
		id = g.compose(g.lastTime)
	}
	return ID(id)
}

func (g *Generator) compose(ms int64) int64 {
	return (ms << timestampShift) |
		(g.workerID << workerIDShift) |
		(g.processID << processIDShift) |
		g.sequence
}

// ExtractTimestamp returns the wall-clock time embedded in a snowflake ID.
func ExtractTimestamp(id int64) time.Time {
	ms := (id >> timestampShift) + epoch
	return time.UnixMilli(ms)
}
