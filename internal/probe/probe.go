// Package probe checks TCP reachability of hosts for the scan endpoints.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// ErrInvalidRange is returned for an empty, inverted or oversized port range.
var ErrInvalidRange = errors.New("invalid port range")

// MaxRangeSize bounds the number of ports in one ScanRange call.
const MaxRangeSize = 1024

// Config holds probe configuration.
type Config struct {
	Timeout     time.Duration
	Concurrency int
}

// ScanResult is the state of one port.
type ScanResult struct {
	Port uint16 `json:"port"`
	Open bool   `json:"open"`
}

// NetworkScan is the outcome of scanning a port range on one target.
type NetworkScan struct {
	Target    string   `json:"target"`
	OpenPorts []uint16 `json:"open_ports"`
	Services  []string `json:"services"`
}

// MetricsRecordFunc is an optional callback invoked once per probed port.
type MetricsRecordFunc func(open bool)

// dialFunc matches net.Dialer.DialContext.
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Scanner probes TCP ports with bounded concurrency.
type Scanner struct {
	cfg       Config
	dial      dialFunc
	lookup    func(ctx context.Context, host string) ([]string, error)
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Scanner.
func New(cfg Config, logger *zap.Logger) *Scanner {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &net.Dialer{Timeout: cfg.Timeout}
	return &Scanner{
		cfg:    cfg,
		dial:   d.DialContext,
		lookup: net.DefaultResolver.LookupHost,
		logger: logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (s *Scanner) SetMetricsRecord(fn MetricsRecordFunc) {
	s.onMetrics = fn
}

// ScanPort reports whether a TCP connection to host:port succeeds. A refused
// or timed-out connection is a closed port, not an error. Failure to resolve
// host is reported as *threat.ExternalCallError.
func (s *Scanner) ScanPort(ctx context.Context, host string, port uint16) (*ScanResult, error) {
	if port == 0 {
		return nil, fmt.Errorf("%w: port 0", ErrInvalidRange)
	}
	if err := s.resolve(ctx, host); err != nil {
		return nil, err
	}
	return &ScanResult{Port: port, Open: s.probe(ctx, host, port)}, nil
}

// ScanRange probes every port in [from, to] on target. Open ports are
// returned in ascending order with a service label for each.
func (s *Scanner) ScanRange(ctx context.Context, target string, from, to uint16) (*NetworkScan, error) {
	if from == 0 || from > to {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidRange, from, to)
	}
	if int(to)-int(from)+1 > MaxRangeSize {
		return nil, fmt.Errorf("%w: more than %d ports", ErrInvalidRange, MaxRangeSize)
	}
	if err := s.resolve(ctx, target); err != nil {
		return nil, err
	}

	open := make([]bool, int(to)-int(from)+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for p := int(from); p <= int(to); p++ {
		port := uint16(p)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			open[int(port)-int(from)] = s.probe(gctx, target, port)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scan := &NetworkScan{Target: target, OpenPorts: []uint16{}, Services: []string{}}
	for i, ok := range open {
		if !ok {
			continue
		}
		port := from + uint16(i)
		scan.OpenPorts = append(scan.OpenPorts, port)
		scan.Services = append(scan.Services, serviceLabel(port))
	}

	s.logger.Info("probe: range scanned",
		zap.String("target", target),
		zap.Uint16("from", from),
		zap.Uint16("to", to),
		zap.Int("open", len(scan.OpenPorts)),
	)
	return scan, nil
}

func (s *Scanner) probe(ctx context.Context, host string, port uint16) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	conn, err := s.dial(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	open := err == nil
	if open {
		conn.Close() //nolint:errcheck
	}
	if s.onMetrics != nil {
		s.onMetrics(open)
	}
	return open
}

func (s *Scanner) resolve(ctx context.Context, host string) error {
	if host == "" {
		return &threat.ExternalCallError{Code: 400, Message: "target host is required"}
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, err := s.lookup(ctx, host); err != nil {
		return &threat.ExternalCallError{Code: 404, Message: fmt.Sprintf("resolve %s: %v", host, err)}
	}
	return nil
}

func serviceLabel(port uint16) string {
	return fmt.Sprintf("Unknown service on port %d", port)
}
