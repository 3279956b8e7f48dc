// Package manager implements the client side of the protocol:
// ManagerProxy issues GET/GETNEXT/GETBULK/SET against one target agent
// over a transport.RoundTripper, with retry-with-backoff and an
// optional per-shape request cache.
//
// Configuration uses the same functional-options shape and
// Factory/NewFactory/nextRequestID idiom as the rest of this module,
// generalized from a synchronous, single-outstanding-request model to
// the transport package's concurrent pending-map correlation, using
// original_source/agentproxy.py's get/set/_timeout (1.5x backoff,
// fresh request-id per retry) and encode()'s cache-key tuple.
package manager

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/transport"
	"github.com/netwatch/snmpcore/wire"
)

// BackoffFactor is the per-retry timeout multiplier, matching
// original_source/agentproxy.py's _timeout (self.timeout * 1.5).
const BackoffFactor = 1.5

// Proxy manages a single remote SNMP agent.
type Proxy interface {
	// Get issues a GetRequest for oids and returns the retrieved
	// bindings as a map keyed by oid string, with endOfMibView
	// bindings dropped and a non-NoError response collapsed to an
	// empty map. Grounded on original_source/agentproxy.py's
	// get()/getResponseResults/asDictionary.
	// https://tools.ietf.org/html/rfc1905#section-4.2.1
	Get(ctx context.Context, oids []string) (map[string]snmptype.Value, error)

	// GetPDU is the low-level primitive behind Get, exposing the raw
	// response PDU (error-status, error-index, and all varbinds
	// including exception sentinels) for callers -- such as
	// walker.TableWalker's v1 includeStart round -- that need to drive
	// the same all-or-nothing PDU handling as GetNext/GetBulk.
	GetPDU(ctx context.Context, oids []string) (*wire.PDU, error)

	// GetNext issues a GetNextRequest for oids.
	// https://tools.ietf.org/html/rfc1905#section-4.2.2
	GetNext(ctx context.Context, oids []string) (*wire.PDU, error)

	// GetBulk issues a GetBulkRequest.
	// https://tools.ietf.org/html/rfc1905#section-4.2.3
	GetBulk(ctx context.Context, oids []string, nonRepeaters, maxRepetitions int) (*wire.PDU, error)

	// Set issues a SetRequest. A non-zero response error-status is
	// surfaced as a *SetFailed error, with the response still
	// returned so the caller can inspect which bindings echoed back.
	Set(ctx context.Context, bindings []wire.VarBind) (*wire.PDU, error)

	// Close releases the underlying socket.
	Close() error
}

// Factory instantiates Proxy values for a given target.
type Factory interface {
	NewProxy(ctx context.Context, target string, opts ...Option) (Proxy, error)
}

// NewFactory returns the default Factory.
func NewFactory() Factory { return &factoryImpl{} }

type factoryImpl struct{}

func (f *factoryImpl) NewProxy(_ context.Context, target string, opts ...Option) (Proxy, error) {
	config := defaultConfig
	for _, opt := range opts {
		opt(&config)
	}
	config.hooks = resolveHooks(config.hooks)

	addr, err := net.ResolveUDPAddr(config.network, target)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve target %q", target)
	}

	conn, err := net.ListenUDP(config.network, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open local socket")
	}

	rt := transport.NewRoundTripper(conn)

	return &proxyImpl{
		rt:            rt,
		target:        addr,
		config:        &config,
		nextRequestID: rand.Int31(), //nolint: gosec
		cache:         make(map[cacheKey]cachedShape),
	}, nil
}

// Option configures a Proxy at construction time.
type Option func(*Config)

// Timeout sets the initial per-attempt response timeout. Default 5s.
func Timeout(d time.Duration) Option { return func(c *Config) { c.timeout = d } }

// Retries sets the number of retry attempts after the first. Default 3.
func Retries(n int) Option { return func(c *Config) { c.retries = n } }

// Network sets the transport network. Default "udp".
func Network(n string) Option { return func(c *Config) { c.network = n } }

// WithVersion sets the SNMP version used for requests. Default
// snmptype.V2c.
func WithVersion(v snmptype.Version) Option { return func(c *Config) { c.version = v } }

// Community sets the community string. Default "public".
func Community(v string) Option { return func(c *Config) { c.community = v } }

// WithHooks installs observability hooks.
func WithHooks(h *Hooks) Option { return func(c *Config) { c.hooks = h } }

// AllowCache enables or disables the per-shape request cache for
// Get/GetBulk (Set and GetNext are never cached, since their bindings
// are expected to vary call to call). Default true.
func AllowCache(allow bool) Option { return func(c *Config) { c.allowCache = allow } }

// Config holds Proxy construction options.
type Config struct {
	network    string
	version    snmptype.Version
	community  string
	timeout    time.Duration
	retries    int
	hooks      *Hooks
	allowCache bool
}

var defaultConfig = Config{
	network:    "udp",
	version:    snmptype.V2c,
	community:  "public",
	timeout:    5 * time.Second,
	retries:    3,
	hooks:      DefaultHooks,
	allowCache: true,
}

// cacheKey mirrors original_source/agentproxy.py's encode() cache key:
// bulk, tuple(oids), community, snmpVersion, maxRepetitions.
type cacheKey struct {
	bulk           bool
	oids           string
	community      string
	version        snmptype.Version
	maxRepetitions int
}

// cachedShape holds the parts of a request that are expensive to
// rebuild (parsed OIDs, the varbind skeleton) but do not vary with the
// request-id bumped on every send/retry.
type cachedShape struct {
	kind           wire.Kind
	nonRepeaters   int
	maxRepetitions int
	varBinds       []wire.VarBind
}

type proxyImpl struct {
	rt     *transport.RoundTripper
	target net.Addr
	config *Config

	mu            sync.Mutex
	nextRequestID int32
	cache         map[cacheKey]cachedShape
}

func (p *proxyImpl) nextID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextRequestID
	p.nextRequestID++
	return id
}

func parseOIDs(oids []string) ([]oid.OID, error) {
	out := make([]oid.OID, len(oids))
	for i, s := range oids {
		o, err := oid.Parse(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parse oid %q", s)
		}
		out[i] = o
	}
	return out, nil
}

// shapeFor builds (or, when eligible, reuses from cache) the
// kind/nonRepeaters/maxRepetitions/varBinds skeleton for a GET or
// GETBULK request. next and set requests never consult or populate
// the cache, matching encode()'s "not set and not next" guard.
func (p *proxyImpl) shapeFor(bulk bool, oids []string, nonRepeaters, maxRepetitions int) (cachedShape, error) {
	if !p.config.allowCache {
		return p.buildShape(bulk, oids, nonRepeaters, maxRepetitions)
	}

	key := cacheKey{
		bulk:           bulk,
		oids:           joinOIDs(oids),
		community:      p.config.community,
		version:        p.config.version,
		maxRepetitions: maxRepetitions,
	}

	p.mu.Lock()
	shape, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return shape, nil
	}

	shape, err := p.buildShape(bulk, oids, nonRepeaters, maxRepetitions)
	if err != nil {
		return cachedShape{}, err
	}

	p.mu.Lock()
	p.cache[key] = shape
	p.mu.Unlock()
	return shape, nil
}

func (p *proxyImpl) buildShape(bulk bool, oids []string, nonRepeaters, maxRepetitions int) (cachedShape, error) {
	parsed, err := parseOIDs(oids)
	if err != nil {
		return cachedShape{}, err
	}
	vbs := make([]wire.VarBind, len(parsed))
	for i, o := range parsed {
		vbs[i] = wire.VarBind{OID: o, Value: snmptype.NullVal(p.config.version)}
	}
	kind := wire.GetRequest
	if bulk {
		kind = wire.GetBulkRequest
	}
	return cachedShape{kind: kind, nonRepeaters: nonRepeaters, maxRepetitions: maxRepetitions, varBinds: vbs}, nil
}

func joinOIDs(oids []string) string {
	out := ""
	for i, o := range oids {
		if i > 0 {
			out += ","
		}
		out += o
	}
	return out
}

// send performs the retry-with-backoff round trip for a fully-built
// request PDU, re-encoding and re-sending with a fresh request-id on
// each attempt. Grounded on original_source/agentproxy.py's _timeout:
// the deadline multiplies by BackoffFactor each retry and every retry
// rebuilds the request with a new request-id (pysnmp's
// initialValue()/request_id counter).
func (p *proxyImpl) send(ctx context.Context, shape cachedShape, community string, version snmptype.Version) (*wire.PDU, error) {
	timeout := p.config.timeout
	var lastErr error

	for attempt := 0; attempt <= p.config.retries; attempt++ {
		requestID := p.nextID()
		req := &wire.PDU{
			Version:        version,
			Community:      community,
			Kind:           shape.kind,
			RequestID:      requestID,
			ErrorIndex:     wire.NoIndex,
			NonRepeaters:   shape.nonRepeaters,
			MaxRepetitions: shape.maxRepetitions,
			VarBinds:       shape.varBinds,
		}

		payload, err := wire.Encode(req)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}

		p.config.hooks.RequestStart(p.target, requestID)
		start := time.Now()
		data, _, err := p.rt.Send(ctx, p.target, payload, requestID, timeout)
		p.config.hooks.RequestComplete(p.target, requestID, err, time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, transport.ErrTimeout) {
				lastErr = &TimedOut{Target: p.target.String(), RequestID: requestID, Attempts: attempt + 1}
				if attempt < p.config.retries {
					nextTimeout := time.Duration(float64(timeout) * BackoffFactor)
					p.config.hooks.RetryScheduled(p.target, requestID, nextTimeout, p.config.retries-attempt-1)
					timeout = nextTimeout
					continue
				}
				return nil, lastErr
			}
			return nil, &TransportError{Target: p.target.String(), Err: err}
		}

		resp, err := wire.Decode(data)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return nil, lastErr
}

func (p *proxyImpl) Get(ctx context.Context, oids []string) (map[string]snmptype.Value, error) {
	resp, err := p.GetPDU(ctx, oids)
	if err != nil {
		return nil, err
	}
	return resp.Values(), nil
}

func (p *proxyImpl) GetPDU(ctx context.Context, oids []string) (*wire.PDU, error) {
	shape, err := p.shapeFor(false, oids, 0, 0)
	if err != nil {
		return nil, err
	}
	return p.send(ctx, shape, p.config.community, p.config.version)
}

func (p *proxyImpl) GetNext(ctx context.Context, oids []string) (*wire.PDU, error) {
	shape, err := p.buildShape(false, oids, 0, 0)
	if err != nil {
		return nil, err
	}
	shape.kind = wire.GetNextRequest
	return p.send(ctx, shape, p.config.community, p.config.version)
}

func (p *proxyImpl) GetBulk(ctx context.Context, oids []string, nonRepeaters, maxRepetitions int) (*wire.PDU, error) {
	shape, err := p.shapeFor(true, oids, nonRepeaters, maxRepetitions)
	if err != nil {
		return nil, err
	}
	return p.send(ctx, shape, p.config.community, p.config.version)
}

func (p *proxyImpl) Set(ctx context.Context, bindings []wire.VarBind) (*wire.PDU, error) {
	shape := cachedShape{kind: wire.SetRequest, varBinds: bindings}
	resp, err := p.send(ctx, shape, p.config.community, p.config.version)
	if err != nil {
		return nil, err
	}
	if resp.ErrorStatus != wire.NoError {
		return resp, &SetFailed{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
	}
	return resp, nil
}

func (p *proxyImpl) Close() error {
	return p.rt.Close()
}
