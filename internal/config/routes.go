package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"go.uber.org/zap"
)

// LoadRoutes reads a route file. A missing file yields no rules and an
// error wrapping domain.ErrMissingConfig that callers only log.
func LoadRoutes(path string, logger *zap.Logger) ([]domain.RouteRule, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: route file %s", domain.ErrMissingConfig, path)
		}
		return nil, err
	}
	defer f.Close()
	return ParseRoutes(f, logger)
}

// ParseRoutes reads route blocks:
//
//	sensor <major> channel <minor>
//	    <topic template>:<measurement>
//
// Blank lines and lines starting with '#' are ignored. Malformed lines are
// logged and skipped.
func ParseRoutes(r io.Reader, logger *zap.Logger) ([]domain.RouteRule, error) {
	var (
		rules   []domain.RouteRule
		current *rfxcom.Identity
		lc      int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lc++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || line[0] == '#' {
			continue
		}
		indented := raw[0] == ' ' || raw[0] == '\t'
		if indented {
			if current == nil {
				logger.Warn("route defined without sensor, ignored", zap.Int("line", lc))
				continue
			}
			rules = append(rules, domain.RouteRule{
				Identity:      *current,
				TopicTemplate: line,
				Line:          lc,
			})
			continue
		}
		id, err := parseSensorHeader(line)
		if err != nil {
			logger.Warn("sensor definition line is incorrect", zap.Int("line", lc), zap.Error(err))
			// routes below belong to no sensor until the next valid header
			current = nil
			continue
		}
		current = &id
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func parseSensorHeader(line string) (rfxcom.Identity, error) {
	parts := strings.Fields(line)
	if len(parts) != 4 {
		return rfxcom.Identity{}, fmt.Errorf("expected 4 tokens, got %d", len(parts))
	}
	major, err := strconv.ParseUint(parts[1], 0, 8)
	if err != nil {
		return rfxcom.Identity{}, fmt.Errorf("sensor id %q: %w", parts[1], err)
	}
	minor, err := strconv.ParseUint(parts[3], 0, 8)
	if err != nil {
		return rfxcom.Identity{}, fmt.Errorf("channel %q: %w", parts[3], err)
	}
	return rfxcom.Identity{Major: uint8(major), Minor: uint8(minor)}, nil
}
