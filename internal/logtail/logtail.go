package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Tail returns at most n entries from the end of the log at path whose
// level is at least minLevel. Lines without a level (stack traces, wrapped
// output) belong to the entry above them. n <= 0 returns every matching
// line. A missing file yields no lines.
func Tail(path string, n int, minLevel zapcore.Level) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	var ring []string
	if n > 0 {
		ring = make([]string, 0, n)
	}
	keep := false
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if level, ok := lineLevel(line); ok {
			keep = level >= minLevel
		}
		if !keep {
			continue
		}
		if n > 0 && len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return ring, nil
}

// lineLevel extracts the level column from a console-encoded entry:
// "<time>\t<LEVEL>\t<logger>\t<message>...".
func lineLevel(line string) (zapcore.Level, bool) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) < 3 {
		return 0, false
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(fields[1])); err != nil {
		return 0, false
	}
	return level, true
}
