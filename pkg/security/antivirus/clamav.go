package antivirus

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// clamd rejects chunks above StreamMaxLength; 64KB stays well under it
const chunkSize = 64 * 1024

// ClamAVScanner streams files to a clamd daemon with the INSTREAM command.
type ClamAVScanner struct {
	address string        // TCP address (host:port) or Unix socket path
	timeout time.Duration // Connection and scan timeout
}

var _ Scanner = (*ClamAVScanner)(nil)

// NewClamAVScanner creates a ClamAV scanner
// address: TCP "localhost:3310" or Unix socket "/var/run/clamav/clamd.sock"
func NewClamAVScanner(address string, timeout time.Duration) *ClamAVScanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClamAVScanner{
		address: address,
		timeout: timeout,
	}
}

func (c *ClamAVScanner) Name() string {
	return "clamav"
}

func (c *ClamAVScanner) dial(ctx context.Context) (net.Conn, error) {
	network := "tcp"
	if strings.HasPrefix(c.address, "/") {
		network = "unix"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clamd: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)
	return conn, nil
}

// Ping checks that the daemon answers PONG
func (c *ClamAVScanner) Ping(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("zPING\x00")); err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}
	reply, err := readReply(conn)
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return fmt.Errorf("unexpected clamd reply %q", reply)
	}
	return nil
}

// Scan sends data in size-prefixed chunks and parses the verdict.
func (c *ClamAVScanner) Scan(ctx context.Context, data io.Reader) (ScanResult, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return ScanResult{}, fmt.Errorf("failed to send command: %w", err)
	}

	buf := make([]byte, chunkSize)
	size := make([]byte, 4)
	for {
		n, readErr := data.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(size, uint32(n))
			if _, err := conn.Write(size); err != nil {
				return ScanResult{}, fmt.Errorf("failed to send chunk size: %w", err)
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return ScanResult{}, fmt.Errorf("failed to send chunk: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return ScanResult{}, fmt.Errorf("failed to read file data: %w", readErr)
		}
	}

	// Zero-length chunk ends the stream
	if _, err := conn.Write([]byte{0, 0, 0, 0}); err != nil {
		return ScanResult{}, fmt.Errorf("failed to send end marker: %w", err)
	}

	reply, err := readReply(conn)
	if err != nil {
		return ScanResult{}, err
	}
	return parseReply(reply)
}

func readReply(conn net.Conn) (string, error) {
	reply, err := bufio.NewReader(conn).ReadString(0)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return strings.TrimSpace(strings.TrimRight(reply, "\x00")), nil
}

// parseReply reads "stream: OK", "stream: <name> FOUND" or "<msg> ERROR".
func parseReply(reply string) (ScanResult, error) {
	switch {
	case strings.HasSuffix(reply, "FOUND"):
		threat := strings.TrimSuffix(reply, "FOUND")
		if _, after, ok := strings.Cut(threat, ":"); ok {
			threat = after
		}
		return ScanResult{Infected: true, ThreatName: strings.TrimSpace(threat)}, nil
	case strings.HasSuffix(reply, "OK"):
		return ScanResult{}, nil
	default:
		return ScanResult{}, fmt.Errorf("scan error: %s", reply)
	}
}
