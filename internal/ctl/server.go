package ctl

import (
	"bufio"
	"encoding/json"
	"net"
	"os"

	"github.com/rs/zerolog"
)

// Resetter is the narrow surface Server needs from an attached region:
// resetting one channel's cursors and slot sequences. *bus.Bus
// satisfies it through ResetChannel, which is kept off the Producer and
// Consumer endpoints because resetting a live channel out from under
// producers/consumers is an unsafe operation.
type Resetter interface {
	ResetChannel(channelID uint32) error
}

// Server listens on a Unix socket and serves reset requests against an
// attached region.
type Server struct {
	path     string
	listener net.Listener
	resetter Resetter
	logger   zerolog.Logger
}

// NewServer removes any stale socket file at path and starts listening.
func NewServer(path string, resetter Resetter, logger zerolog.Logger) (*Server, error) {
	_ = os.Remove(path) // stale socket from a previous run
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Server{path: path, listener: l, resetter: resetter, logger: logger}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			s.logger.Warn().Err(err).Msg("ctl: malformed envelope")
			return
		}
		if env.Type != "reset" {
			s.logger.Warn().Str("type", env.Type).Msg("ctl: unknown request type")
			continue
		}
		var req ResetRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.logger.Warn().Err(err).Msg("ctl: malformed reset request")
			continue
		}

		resp := ResetResponse{ChannelID: req.ChannelID}
		if err := s.resetter.ResetChannel(req.ChannelID); err != nil {
			resp.Error = err.Error()
		} else {
			resp.OK = true
		}

		payload, _ := json.Marshal(resp)
		out, _ := json.Marshal(Envelope{Type: "reset", Payload: payload})
		out = append(out, '\n')
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}
