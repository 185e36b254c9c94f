package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/csvkeeper/internal/logging"
	pb "github.com/dmitrijs2005/csvkeeper/internal/proto"
	"github.com/dmitrijs2005/csvkeeper/internal/server/models"
	"github.com/dmitrijs2005/csvkeeper/internal/server/services"
	"google.golang.org/grpc"
)

// fileSvc is the part of services.FileService the transport needs.
type fileSvc interface {
	Upload(ctx context.Context, req services.UploadRequest) (*services.UploadResult, error)
	Retrieve(ctx context.Context, id string) (*services.Download, error)
	List(ctx context.Context) ([]*models.FileInfo, error)
}

type GRPCServer struct {
	pb.UnimplementedFileServiceServer
	address      string
	files        fileSvc
	logger       logging.Logger
	jwtSecret    []byte
	maxRecvBytes int
}

// NewGRPCServer builds the server. maxRecvBytes bounds a single request
// (an uploaded batch); zero keeps the gRPC default.
func NewGRPCServer(a string, l logging.Logger, fs fileSvc, secretKey string, maxRecvBytes int) *GRPCServer {
	return &GRPCServer{
		address:      a,
		logger:       l.With("module", "grpc_server"),
		files:        fs,
		jwtSecret:    []byte(secretKey),
		maxRecvBytes: maxRecvBytes,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(s.accessTokenInterceptor)}
	if s.maxRecvBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.maxRecvBytes))
	}
	srv := grpc.NewServer(opts...)
	pb.RegisterFileServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
