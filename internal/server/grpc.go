package server

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"spiral-forge/internal/logging"
)

const (
	DefaultMaxRecvMsgSize = 100 * 1024 * 1024
	DefaultMaxSendMsgSize = 100 * 1024 * 1024
)

var (
	// Default keepalive options
	DefaultKeepaliveOptions = KeepaliveOptions{
		ClientInterval:    time.Duration(1) * time.Minute,  // 1 min
		ClientTimeout:     time.Duration(20) * time.Second, // 20 sec - gRPC default
		ServerInterval:    time.Duration(2) * time.Hour,    // 2 hours - gRPC default
		ServerTimeout:     time.Duration(20) * time.Second, // 20 sec - gRPC default
		ServerMinInterval: time.Duration(1) * time.Minute,  // match ClientInterval
	}
	DefaultConnectionTimeout = 5 * time.Second
)

// KeepaliveOptions is used to set the gRPC keepalive settings for both
// clients and servers
type KeepaliveOptions struct {
	// ClientInterval is the duration after which if the client does not see
	// any activity from the server it pings the server to see if it is alive
	ClientInterval time.Duration
	// ClientTimeout is the duration the client waits for a response
	// from the server after sending a ping before closing the connection
	ClientTimeout time.Duration
	// ServerInterval is the duration after which if the server does not see
	// any activity from the client it pings the client to see if it is alive
	ServerInterval time.Duration
	// ServerTimeout is the duration the server waits for a response
	// from the client after sending a ping before closing the connection
	ServerTimeout time.Duration
	// ServerMinInterval is the minimum permitted time between client pings.
	ServerMinInterval time.Duration
}

// ServerKeepaliveOptions returns gRPC keepalive options for a server.
func (ka KeepaliveOptions) ServerKeepaliveOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    ka.ServerInterval,
			Timeout: ka.ServerTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             ka.ServerMinInterval,
			PermitWithoutStream: true,
		}),
	}
}

// ClientKeepaliveOptions returns gRPC keepalive dial options for clients.
func (ka KeepaliveOptions) ClientKeepaliveOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                ka.ClientInterval,
			Timeout:             ka.ClientTimeout,
			PermitWithoutStream: true,
		}),
	}
}

type ServerConfig struct {
	// ConnectionTimeout specifies the timeout for connection establishment
	// for all new connections
	ConnectionTimeout time.Duration
	KaOpts            KeepaliveOptions
	// HealthCheckEnabled enables the gRPC Health Checking Protocol for the server
	HealthCheckEnabled bool
	MaxRecvMsgSize     int
	MaxSendMsgSize     int
	// Logger receives one line per call. Defaults to the server module logger.
	Logger logging.Logger
}

// DefaultServerConfig returns the configuration used by the serve command.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ConnectionTimeout:  DefaultConnectionTimeout,
		KaOpts:             DefaultKeepaliveOptions,
		HealthCheckEnabled: true,
	}
}

// GRPCServer serves the trainer service on one listener.
type GRPCServer struct {
	address      string
	listener     net.Listener
	server       *grpc.Server
	healthServer *health.Server
}

// NewGRPCServer listens on address and registers srv.
func NewGRPCServer(address string, srv TrainerServer, cfg ServerConfig) (*GRPCServer, error) {
	if address == "" {
		return nil, errors.New("missing address parameter")
	}
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", address)
	}
	return NewGRPCServerFromListener(lis, srv, cfg), nil
}

// NewGRPCServerFromListener creates a server on an existing listener.
func NewGRPCServerFromListener(listener net.Listener, srv TrainerServer, cfg ServerConfig) *GRPCServer {
	gs := &GRPCServer{
		address:  listener.Addr().String(),
		listener: listener,
	}

	maxSendMsgSize := DefaultMaxSendMsgSize
	if cfg.MaxSendMsgSize != 0 {
		maxSendMsgSize = cfg.MaxSendMsgSize
	}
	maxRecvMsgSize := DefaultMaxRecvMsgSize
	if cfg.MaxRecvMsgSize != 0 {
		maxRecvMsgSize = cfg.MaxRecvMsgSize
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetLogger(logging.ModuleServer)
	}

	serverOpts := []grpc.ServerOption{
		grpc.MaxSendMsgSize(maxSendMsgSize),
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		grpc.ConnectionTimeout(cfg.ConnectionTimeout),
		grpc.UnaryInterceptor(loggingInterceptor(log)),
	}
	serverOpts = append(serverOpts, cfg.KaOpts.ServerKeepaliveOptions()...)

	gs.server = grpc.NewServer(serverOpts...)
	RegisterTrainerServer(gs.server, srv)

	if cfg.HealthCheckEnabled {
		gs.healthServer = health.NewServer()
		healthpb.RegisterHealthServer(gs.server, gs.healthServer)
	}
	return gs
}

// Address returns the listen address for this GRPCServer instance
func (gs *GRPCServer) Address() string {
	return gs.address
}

// Start marks every registered service SERVING and blocks serving requests.
func (gs *GRPCServer) Start() error {
	if gs.healthServer != nil {
		for name := range gs.server.GetServiceInfo() {
			gs.healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
		}
		gs.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	}
	return gs.server.Serve(gs.listener)
}

// Stop marks the server NOT_SERVING and waits for in-flight calls.
func (gs *GRPCServer) Stop() {
	if gs.healthServer != nil {
		gs.healthServer.Shutdown()
	}
	gs.server.GracefulStop()
}

// ClientConfig defines the parameters for dialing a trainer service.
type ClientConfig struct {
	KaOpts         KeepaliveOptions
	MaxRecvMsgSize int
	MaxSendMsgSize int
	// Extra is appended to the generated dial options.
	Extra []grpc.DialOption
}

// DialOptions converts the config to grpc.DialOptions.
func (cc ClientConfig) DialOptions() []grpc.DialOption {
	maxRecvMsgSize := DefaultMaxRecvMsgSize
	if cc.MaxRecvMsgSize != 0 {
		maxRecvMsgSize = cc.MaxRecvMsgSize
	}
	maxSendMsgSize := DefaultMaxSendMsgSize
	if cc.MaxSendMsgSize != 0 {
		maxSendMsgSize = cc.MaxSendMsgSize
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxRecvMsgSize),
			grpc.MaxCallSendMsgSize(maxSendMsgSize),
		),
	}
	dialOpts = append(dialOpts, cc.KaOpts.ClientKeepaliveOptions()...)
	return append(dialOpts, cc.Extra...)
}

// Client calls a remote trainer service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target. The connection is established lazily.
func Dial(target string, cc ClientConfig) (*Client, error) {
	conn, err := grpc.NewClient(target, cc.DialOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create new connection")
	}
	return &Client{conn: conn}, nil
}

// Conn exposes the underlying connection, e.g. for health checks.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	out := new(InitializeResponse)
	if err := c.invoke(ctx, "Initialize", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TrainStep(ctx context.Context, req *TrainStepRequest) (*TrainStepResponse, error) {
	out := new(TrainStepResponse)
	if err := c.invoke(ctx, "TrainStep", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PredictGrid(ctx context.Context, req *PredictGridRequest) (*PredictGridResponse, error) {
	out := new(PredictGridResponse)
	if err := c.invoke(ctx, "PredictGrid", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Dataset(ctx context.Context, req *DatasetRequest) (*DatasetResponse, error) {
	out := new(DatasetResponse)
	if err := c.invoke(ctx, "Dataset", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RenderPrediction(ctx context.Context, req *RenderRequest) (*RenderResponse, error) {
	out := new(RenderResponse)
	if err := c.invoke(ctx, "RenderPrediction", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, out any) error {
	return c.conn.Invoke(ctx, fullMethod(method), req, out, grpc.ForceCodec(jsonCodec{}))
}
