package doubleit

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"

	"code.cloudfoundry.org/lager"

	"github.com/pivotal-cf/protogate/gate"
	"github.com/pivotal-cf/protogate/policy"
)

const (
	// Path is where the service is mounted.
	Path = "/DoubleItService"

	maxRequestSize = 1 << 20
)

type attemptKey struct{}

// Server answers DoubleIt requests over connections gated by its own
// server-side protocol policy.
type Server struct {
	logger    lager.Logger
	users     map[string]string
	listeners *gate.ListenerFactory
	server    *http.Server
}

func NewServer(logger lager.Logger, enforcer *gate.Enforcer, p policy.Policy, tlsConfig *tls.Config, users map[string]string) (*Server, error) {
	listeners := gate.NewListenerFactory(tlsConfig)
	if err := enforcer.AttachToServer(p, listeners); err != nil {
		return nil, err
	}

	s := &Server{
		logger:    logger.Session("doubleit-server", lager.Data{"protocols": p.Names()}),
		users:     users,
		listeners: listeners,
	}

	mux := http.NewServeMux()
	mux.Handle(Path, s)

	s.server = &http.Server{
		Handler: mux,
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			if attempt, ok := gate.AttemptOf(c); ok {
				return context.WithValue(ctx, attemptKey{}, attempt)
			}
			return ctx
		},
	}

	return s, nil
}

// Start listens on addr and serves in the background. It returns the
// bound address, which matters when addr has port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	listener, err := s.listeners.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve", err)
		}
	}()

	s.logger.Info("started", lager.Data{"address": listener.Addr().String()})
	return listener.Addr(), nil
}

// Serve blocks serving on an existing listener wrapped by the gate.
func (s *Server) Serve(inner net.Listener) error {
	listener, err := s.listeners.NewListener(inner)
	if err != nil {
		return err
	}

	err = s.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.server.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := lager.Data{"remote": r.RemoteAddr}
	if attempt, ok := r.Context().Value(attemptKey{}).(*gate.Attempt); ok {
		data["version"] = attempt.Decision().Version.String()
	}
	logger := s.logger.Session("double-it", data)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		logger.Error("read-request", err)
		s.fault(w, logger, &Fault{Code: "soap:Client", String: "unreadable request"})
		return
	}

	number, token, err := unmarshalRequest(payload)
	if err != nil {
		logger.Error("parse-request", err)
		s.fault(w, logger, &Fault{Code: "soap:Client", String: err.Error()})
		return
	}

	if !s.authenticate(token) {
		logger.Info("authentication-failed")
		s.fault(w, logger, &Fault{Code: "wsse:FailedAuthentication", String: "The security token could not be authenticated or authorized"})
		return
	}

	response, err := marshalResponse(number * 2)
	if err != nil {
		logger.Error("marshal-response", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Debug("doubled", lager.Data{"user": token.Username, "number": number})

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Write(response)
}

func (s *Server) authenticate(token *UsernameToken) bool {
	if token == nil || token.Username == "" {
		return false
	}

	expected, ok := s.users[token.Username]
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), []byte(token.Password)) == 1
}

func (s *Server) fault(w http.ResponseWriter, logger lager.Logger, fault *Fault) {
	body, err := marshalFault(fault)
	if err != nil {
		logger.Error("marshal-fault", err)
		http.Error(w, fault.String, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write(body)
}
