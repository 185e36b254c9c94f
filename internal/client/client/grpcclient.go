// Package client is the gRPC client of the csvkeeper file service.
package client

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	pb "github.com/dmitrijs2005/csvkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type UploadResult struct {
	ID          string
	DisplayName string
	IV          string
}

type FileInfo struct {
	ID          string
	DisplayName string
	OwnerID     string
	IV          string
	CreatedAt   time.Time
}

// Download is a retrieved file. FileName comes from the content-disposition
// header and falls back to the file id.
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.FileServiceClient
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewCSVKeeperClient connects lazily to endpointURL with insecure transport
// credentials. Extra dial options are appended (tests use them for bufconn).
func NewCSVKeeperClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewFileServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Upload(ctx context.Context, fileName, contentType string, data []byte) (*UploadResult, error) {
	ctx = metadata.AppendToOutgoingContext(ctx,
		common.FileNameHeaderName, fileName,
		common.ContentTypeHeaderName, contentType,
	)

	resp, err := s.client.Upload(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return nil, s.mapError(err)
	}

	f := resp.GetFields()
	return &UploadResult{
		ID:          f["id"].GetStringValue(),
		DisplayName: f["display_name"].GetStringValue(),
		IV:          f["iv"].GetStringValue(),
	}, nil
}

func (s *GRPCClient) Download(ctx context.Context, id string) (*Download, error) {
	var header metadata.MD

	resp, err := s.client.Download(ctx, wrapperspb.String(id), grpc.Header(&header))
	if err != nil {
		return nil, s.mapError(err)
	}

	d := &Download{FileName: id, ContentType: common.CSVContentType, Data: resp.GetValue()}
	if v := header.Get(common.ContentDispositionHeaderName); len(v) > 0 {
		if _, params, err := mime.ParseMediaType(v[0]); err == nil && params["filename"] != "" {
			d.FileName = params["filename"]
		}
	}
	if v := header.Get(common.ContentTypeHeaderName); len(v) > 0 && v[0] != "" {
		d.ContentType = v[0]
	}
	return d, nil
}

func (s *GRPCClient) List(ctx context.Context) ([]FileInfo, error) {
	resp, err := s.client.List(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}

	items := make([]FileInfo, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		f := v.GetStructValue().GetFields()
		fi := FileInfo{
			ID:          f["id"].GetStringValue(),
			DisplayName: f["display_name"].GetStringValue(),
			OwnerID:     f["owner_id"].GetStringValue(),
			IV:          f["iv"].GetStringValue(),
		}
		if ts, err := time.Parse(time.RFC3339Nano, f["created_at"].GetStringValue()); err == nil {
			fi.CreatedAt = ts
		}
		items = append(items, fi)
	}
	return items, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetValue() != "OK" {
		return fmt.Errorf("unexpected ping response %q", resp.GetValue())
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.DataLoss:
		return ErrDamaged
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
