package server

import (
	"bytes"
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"spiral-forge/internal/logging"
	"spiral-forge/internal/render"
	"spiral-forge/internal/trainer"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "spiralforge.Trainer"

const (
	maxStepsPerCall = 10000
	maxRenderPixels = 4096 * 4096

	maxTotalSamples = 1 << 20
	maxHiddenSize   = 1 << 14
	maxNumClasses   = 1 << 12
	maxHiddenCells  = 1 << 26 // hidden activations of one full-batch step
)

// TrainerServer is the server API of the trainer service.
type TrainerServer interface {
	Initialize(context.Context, *InitializeRequest) (*InitializeResponse, error)
	TrainStep(context.Context, *TrainStepRequest) (*TrainStepResponse, error)
	PredictGrid(context.Context, *PredictGridRequest) (*PredictGridResponse, error)
	Dataset(context.Context, *DatasetRequest) (*DatasetResponse, error)
	RenderPrediction(context.Context, *RenderRequest) (*RenderResponse, error)
}

// Service exposes one training session over gRPC.
type Service struct {
	session *trainer.Session
	alloc   render.Allocator
	log     logging.Logger
}

var _ TrainerServer = (*Service)(nil)

// NewService wraps an initialized session. A nil logger falls back to the
// server module logger.
func NewService(s *trainer.Session, log logging.Logger) *Service {
	if log == nil {
		log = logging.GetLogger(logging.ModuleServer)
	}
	return &Service{session: s, log: log}
}

func (s *Service) Initialize(_ context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	if err := checkSessionSize(req); err != nil {
		return nil, err
	}
	meta, err := s.session.Initialize(req.Params())
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Infof("session initialized samples=%d classes=%d hidden=%d", meta.Samples, meta.NumClasses, meta.HiddenSize)
	return &InitializeResponse{Samples: meta.Samples, NumClasses: meta.NumClasses}, nil
}

// checkSessionSize rejects sessions too large to allocate. Each dimension is
// bounded before any product is taken so the products cannot overflow.
func checkSessionSize(req *InitializeRequest) error {
	switch {
	case req.TotalSamples > maxTotalSamples:
		return status.Errorf(codes.InvalidArgument, "total_samples %d exceeds limit %d", req.TotalSamples, maxTotalSamples)
	case req.HiddenSize > maxHiddenSize:
		return status.Errorf(codes.InvalidArgument, "hidden_size %d exceeds limit %d", req.HiddenSize, maxHiddenSize)
	case req.NumClasses > maxNumClasses:
		return status.Errorf(codes.InvalidArgument, "num_classes %d exceeds limit %d", req.NumClasses, maxNumClasses)
	case req.HiddenSize*req.TotalSamples > maxHiddenCells:
		return status.Errorf(codes.InvalidArgument, "hidden_size*total_samples %d exceeds limit %d",
			req.HiddenSize*req.TotalSamples, maxHiddenCells)
	case req.HiddenSize*req.NumClasses > maxHiddenCells:
		return status.Errorf(codes.InvalidArgument, "hidden_size*num_classes %d exceeds limit %d",
			req.HiddenSize*req.NumClasses, maxHiddenCells)
	}
	return nil
}

func (s *Service) TrainStep(ctx context.Context, req *TrainStepRequest) (*TrainStepResponse, error) {
	steps := req.Steps
	if steps <= 0 {
		steps = 1
	}
	if steps > maxStepsPerCall {
		return nil, status.Errorf(codes.InvalidArgument, "steps %d exceeds limit %d", steps, maxStepsPerCall)
	}
	var res trainer.StepResult
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, status.FromContextError(err).Err()
		}
		res = s.session.TrainStepDetailed()
	}
	loss := res.Total()
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return nil, toStatus(errors.Wrapf(trainer.ErrDiverged, "step %d", res.Step))
	}
	return &TrainStepResponse{Step: res.Step, DataLoss: res.DataLoss, RegLoss: res.RegLoss, Loss: loss}, nil
}

func (s *Service) PredictGrid(_ context.Context, req *PredictGridRequest) (*PredictGridResponse, error) {
	var query *mat.Dense
	if n := len(req.Points); n > 0 {
		query = mat.NewDense(n, 2, nil)
		for i, p := range req.Points {
			query.SetRow(i, p[:])
		}
	}
	labels, err := s.session.PredictGrid(query)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PredictGridResponse{Labels: labels}, nil
}

func (s *Service) Dataset(context.Context, *DatasetRequest) (*DatasetResponse, error) {
	data := s.session.Dataset()
	resp := &DatasetResponse{
		Points: make([][2]float64, data.Len()),
		Labels: data.Labels,
	}
	for i := range resp.Points {
		resp.Points[i] = [2]float64{data.Points.At(i, 0), data.Points.At(i, 1)}
	}
	return resp, nil
}

func (s *Service) RenderPrediction(_ context.Context, req *RenderRequest) (*RenderResponse, error) {
	if req.Width <= 0 || req.Height <= 0 || !(req.SpanLeast > 0) {
		return nil, status.Errorf(codes.InvalidArgument, "invalid viewport %dx%d span %v",
			req.Width, req.Height, req.SpanLeast)
	}
	if req.Width > maxRenderPixels/req.Height {
		return nil, status.Errorf(codes.InvalidArgument, "viewport %dx%d exceeds %d pixels",
			req.Width, req.Height, maxRenderPixels)
	}
	var buf bytes.Buffer
	vp := render.Viewport{Width: req.Width, Height: req.Height, SpanLeast: req.SpanLeast}
	if err := render.RenderPNGWith(&s.alloc, &buf, s.session.Snapshot(), vp); err != nil {
		return nil, toStatus(err)
	}
	return &RenderResponse{PNG: buf.Bytes()}, nil
}

func toStatus(err error) error {
	switch cause := errors.Cause(err); cause {
	case trainer.ErrInvalidParams, trainer.ErrQueryShape:
		return status.Error(codes.InvalidArgument, err.Error())
	case trainer.ErrDiverged:
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// RegisterTrainerServer attaches srv to s.
func RegisterTrainerServer(s grpc.ServiceRegistrar, srv TrainerServer) {
	s.RegisterService(&trainerServiceDesc, srv)
}

var trainerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrainerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Initialize", TrainerServer.Initialize),
		unaryMethod("TrainStep", TrainerServer.TrainStep),
		unaryMethod("PredictGrid", TrainerServer.PredictGrid),
		unaryMethod("Dataset", TrainerServer.Dataset),
		unaryMethod("RenderPrediction", TrainerServer.RenderPrediction),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spiralforge/trainer",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryMethod[Req, Resp any](name string, call func(TrainerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TrainerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TrainerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// loggingInterceptor logs every unary call with its latency and status code.
func loggingInterceptor(log logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if err != nil && code != codes.InvalidArgument {
			log.Warnf("method=%s code=%s elapsed=%s err=%v", info.FullMethod, code, time.Since(start), err)
		} else {
			log.Debugf("method=%s code=%s elapsed=%s", info.FullMethod, code, time.Since(start))
		}
		return resp, err
	}
}
