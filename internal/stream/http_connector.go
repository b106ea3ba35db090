package stream

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultConnectTimeout   = 3 * time.Second
	defaultReadTimeout      = 5 * time.Second
	defaultSnapshotInterval = 200 * time.Millisecond

	// maxFrameBytes bounds a single JPEG frame; anything larger is a
	// malformed stream, not a plausible camera frame.
	maxFrameBytes = 8 << 20
)

// HTTPConnector acquires frames from Panasonic-style CGI camera endpoints.
// It supports the continuous MJPEG stream (/cgi-bin/mjpeg) and the
// single-frame snapshot endpoint (/cgi-bin/camera).
type HTTPConnector struct {
	// ConnectTimeout bounds dialing plus response headers. Zero means 3s.
	ConnectTimeout time.Duration
	// ReadTimeout bounds each frame read. Zero means 5s.
	ReadTimeout time.Duration
	// SnapshotInterval paces snapshot polling. Zero means 200ms.
	SnapshotInterval time.Duration
}

func (c *HTTPConnector) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return defaultConnectTimeout
}

func (c *HTTPConnector) readTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return c.ReadTimeout
	}
	return defaultReadTimeout
}

func (c *HTTPConnector) snapshotInterval() time.Duration {
	if c.SnapshotInterval > 0 {
		return c.SnapshotInterval
	}
	return defaultSnapshotInterval
}

func (c *HTTPConnector) Connect(ctx context.Context, desc SourceDescriptor, variant VariantKind) (Conn, error) {
	switch variant {
	case VariantMJPEG:
		return c.connectMJPEG(ctx, desc)
	case VariantSnapshot:
		return c.connectSnapshot(desc), nil
	default:
		return nil, attemptErr(FailureRefused, fmt.Errorf("unsupported variant %q", variant))
	}
}

func endpointURL(desc SourceDescriptor, path string) string {
	port := desc.Port
	if port == 0 {
		port = 80
	}
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(desc.Host, strconv.Itoa(port)),
		Path:   path,
	}
	if desc.Width > 0 && desc.Height > 0 {
		u.RawQuery = fmt.Sprintf("resolution=%dx%d", desc.Width, desc.Height)
	}
	return u.String()
}

func (c *HTTPConnector) connectMJPEG(ctx context.Context, desc SourceDescriptor) (Conn, error) {
	mc := &mjpegConn{readTimeout: c.readTimeout()}

	dialer := &net.Dialer{Timeout: c.connectTimeout()}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err == nil {
				mc.setNetConn(conn)
			}
			return conn, err
		},
		ResponseHeaderTimeout: c.connectTimeout(),
		DisableKeepAlives:     true,
	}

	// The stream body outlives the connect phase, so the request context is
	// tied to the session, not to the connect timeout.
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpointURL(desc, "/cgi-bin/mjpeg"), nil)
	if err != nil {
		cancel()
		return nil, attemptErr(FailureRefused, err)
	}
	if desc.Username != "" {
		req.SetBasicAuth(desc.Username, desc.Password)
	}

	client := &http.Client{Transport: transport}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, classifyConnect(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, attemptErr(FailureRefused, fmt.Errorf("camera returned %s", resp.Status))
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, attemptErr(FailureDecode, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	mc.resp = resp
	mc.cancel = cancel
	mc.reader = multipart.NewReader(resp.Body, params["boundary"])
	return mc, nil
}

type mjpegConn struct {
	resp        *http.Response
	reader      *multipart.Reader
	cancel      context.CancelFunc
	readTimeout time.Duration

	mu      sync.Mutex
	netConn net.Conn
	closed  bool
}

func (c *mjpegConn) setNetConn(conn net.Conn) {
	c.mu.Lock()
	c.netConn = conn
	c.mu.Unlock()
}

// armDeadline bounds the next frame read on the underlying socket. The
// deadline is absolute, so it covers both the part header and its body.
func (c *mjpegConn) armDeadline() {
	c.mu.Lock()
	if c.netConn != nil && !c.closed {
		_ = c.netConn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	c.mu.Unlock()
}

func (c *mjpegConn) ReadFrame(ctx context.Context) (FramePayload, error) {
	c.armDeadline()

	part, err := c.reader.NextPart()
	if err != nil {
		return FramePayload{}, classifyRead(ctx, err)
	}

	data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes))
	part.Close()
	if err != nil {
		return FramePayload{}, classifyRead(ctx, err)
	}

	return decodeJPEG(data)
}

func (c *mjpegConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	return c.resp.Body.Close()
}

func (c *HTTPConnector) connectSnapshot(desc SourceDescriptor) Conn {
	interval := desc.SnapshotInterval
	if interval <= 0 {
		interval = c.snapshotInterval()
	}

	dialer := &net.Dialer{Timeout: c.connectTimeout()}
	client := &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: c.connectTimeout(),
			MaxIdleConnsPerHost:   1,
		},
	}

	return &snapshotConn{
		client:      client,
		url:         endpointURL(desc, "/cgi-bin/camera"),
		username:    desc.Username,
		password:    desc.Password,
		readTimeout: c.readTimeout(),
		interval:    interval,
	}
}

// snapshotConn acquires frames by polling the single-frame CGI endpoint.
// The first fetch doubles as the connection check; until it succeeds,
// failures are classified as connect-phase errors.
type snapshotConn struct {
	client      *http.Client
	url         string
	username    string
	password    string
	readTimeout time.Duration
	interval    time.Duration

	last      time.Time
	connected bool
}

func (c *snapshotConn) ReadFrame(ctx context.Context) (FramePayload, error) {
	if !c.last.IsZero() {
		if wait := c.interval - time.Since(c.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return FramePayload{}, attemptErr(FailureCancelled, ctx.Err())
			case <-timer.C:
			}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return FramePayload{}, attemptErr(FailureRefused, err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	c.last = time.Now()
	if err != nil {
		if !c.connected {
			return FramePayload{}, classifyConnect(ctx, err)
		}
		return FramePayload{}, classifyRead(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FramePayload{}, attemptErr(FailureRefused, fmt.Errorf("camera returned %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return FramePayload{}, classifyRead(ctx, err)
	}

	payload, derr := decodeJPEG(data)
	if derr != nil {
		return FramePayload{}, derr
	}
	c.connected = true
	return payload, nil
}

func (c *snapshotConn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func decodeJPEG(data []byte) (FramePayload, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return FramePayload{}, attemptErr(FailureDecode, err)
	}
	return FramePayload{Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}
