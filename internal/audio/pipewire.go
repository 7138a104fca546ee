package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultMonitor is the pulse alias for the monitor of the default sink
const DefaultMonitor = "@DEFAULT_MONITOR@"

// PulseSource is a capture source known to the PipeWire pulse server
type PulseSource struct {
	Name    string `json:"name"`
	Driver  string `json:"driver"`
	Format  string `json:"format"`
	State   string `json:"state"`
	Monitor bool   `json:"monitor"`
}

// PipeWire queries the PipeWire graph for loopback targets
type PipeWire struct{}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{}
}

// ListOutputPorts returns every output port in the graph via pw-link
func (pw *PipeWire) ListOutputPorts(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, "pw-link", "-o").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePortList(string(output)), nil
}

// ListSources returns the sources parec can record from
func (pw *PipeWire) ListSources(ctx context.Context) ([]PulseSource, error) {
	output, err := exec.CommandContext(ctx, "pactl", "list", "short", "sources").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list pulse sources: %w", err)
	}
	sources := parseSourceList(string(output))
	slog.Debug("Listed capture sources", "count", len(sources))
	return sources, nil
}

// ValidateTarget checks that a capture target exists exactly once
func (pw *PipeWire) ValidateTarget(ctx context.Context, target string) error {
	if target == "" || target == DefaultMonitor {
		return nil
	}

	sources, err := pw.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to check capture target: %w", err)
	}
	return validateTargetInList(target, sources)
}

func validateTargetInList(target string, sources []PulseSource) error {
	if target == "" || target == DefaultMonitor {
		return nil
	}

	duplicates := findSourceDuplicatesInList(target, sources)
	if len(duplicates) == 0 {
		return fmt.Errorf("capture target not found: %s", target)
	}
	if len(duplicates) > 1 {
		return fmt.Errorf("duplicate sources detected for '%s': %d entries. Please close conflicting applications", target, len(duplicates))
	}
	return nil
}

// findSourceDuplicatesInList finds all sources with exactly the same name
func findSourceDuplicatesInList(name string, sources []PulseSource) []PulseSource {
	var duplicates []PulseSource
	for _, s := range sources {
		if s.Name == name {
			duplicates = append(duplicates, s)
		}
	}
	return duplicates
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Input ports:") || strings.HasPrefix(line, "Output ports:") {
			continue
		}
		// Link lines from pw-link -l are indented arrows
		if strings.HasPrefix(line, "|->") || strings.HasPrefix(line, "|<-") {
			continue
		}
		ports = append(ports, line)
	}
	return ports
}

// parseSourceList reads "pactl list short sources" output:
// index, name, driver, sample spec, state separated by tabs
func parseSourceList(output string) []PulseSource {
	var sources []PulseSource
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			fields = strings.Fields(line)
		}
		if len(fields) < 2 {
			continue
		}
		s := PulseSource{Name: fields[1]}
		if len(fields) > 2 {
			s.Driver = fields[2]
		}
		if len(fields) > 3 {
			s.Format = fields[3]
		}
		if len(fields) > 4 {
			s.State = fields[4]
		}
		s.Monitor = strings.HasSuffix(s.Name, ".monitor")
		sources = append(sources, s)
	}
	return sources
}
