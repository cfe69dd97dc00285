package service

import (
	"net"
	"time"

	"github.com/ValentinKolb/tkv/rpc/transport/base"
	"github.com/ValentinKolb/tkv/rpc/wire"
)

const (
	// probeNonce is the nonce sent with proxy-ping probes. The probed
	// node echoes it; any other value in the reply means the frame was
	// corrupted in flight.
	probeNonce = 99999

	// NoResponse is the sentinel reply time reported when the probed
	// node did not answer within the timeout. Callers receive it as a
	// normal measurement instead of a hard timeout error.
	NoResponse = int64(-1)
)

// probe pings the node at the given locator and returns the observed
// round-trip time in nanoseconds, or NoResponse if the node is
// unreachable, answers too late or echoes the wrong nonce. The timeout
// bounds the dial and the reply wait together.
func (s *Service) probe(locator string, timeoutNs uint64) int64 {
	timeout := time.Duration(timeoutNs)
	deadline := time.Now().Add(timeout)

	conn, err := net.DialTimeout("tcp", locator, timeout)
	if err != nil {
		Logger.Debugf("Proxy ping: failed to reach %s: %v", locator, err)
		return NoResponse
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return NoResponse
	}

	// Marshal a ping request: handle 0 (probes carry no session), nonce
	req := wire.NewBufferSize(16)
	req.PutUint64(0).PutUint64(probeNonce)

	start := time.Now()
	if err := base.WriteFrame(conn, uint64(wire.OpPing), 1, req.Bytes()); err != nil {
		Logger.Debugf("Proxy ping: failed to send probe to %s: %v", locator, err)
		return NoResponse
	}

	_, _, data, err := base.ReadFrame(conn, nil)
	elapsed := time.Since(start)
	if err != nil {
		Logger.Debugf("Proxy ping: no reply from %s: %v", locator, err)
		return NoResponse
	}

	respBuf := wire.View(data)
	if st := respBuf.Status(); st != wire.StatusOK {
		return NoResponse
	}
	if nonce := respBuf.Uint64(); respBuf.Err() != nil || nonce != probeNonce {
		Logger.Warningf("Proxy ping: %s echoed wrong nonce", locator)
		return NoResponse
	}

	return int64(elapsed)
}
