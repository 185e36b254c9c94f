package client

import (
	"context"
	"net"
	"testing"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	pb "github.com/dmitrijs2005/csvkeeper/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type fakeServer struct {
	pb.UnimplementedFileServiceServer

	gotMD   metadata.MD
	gotData []byte
	err     error
}

func (f *fakeServer) Upload(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	f.gotMD, _ = metadata.FromIncomingContext(ctx)
	f.gotData = in.GetValue()
	if f.err != nil {
		return nil, f.err
	}
	return structpb.NewStruct(map[string]any{"id": "id-1", "display_name": "a.csv.enc", "iv": "00"})
}

func (f *fakeServer) Download(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	f.gotMD, _ = metadata.FromIncomingContext(ctx)
	if f.err != nil {
		return nil, f.err
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(
		common.ContentDispositionHeaderName, `attachment; filename="a.csv.enc"`,
		common.ContentTypeHeaderName, "text/csv",
	))
	return wrapperspb.Bytes([]byte("h,v\nx,1\n")), nil
}

func (f *fakeServer) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return structpb.NewList([]any{
		map[string]any{"id": "a", "display_name": "a.csv.enc", "owner_id": "o", "iv": "00", "created_at": "2025-05-01T08:30:00Z"},
		map[string]any{"id": "b", "display_name": "b.csv.enc", "owner_id": "o", "iv": "01", "created_at": "garbage"},
	})
}

func (f *fakeServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	f.gotMD, _ = metadata.FromIncomingContext(ctx)
	return wrapperspb.String("OK"), nil
}

func newTestClient(t *testing.T, f *fakeServer, token string) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pb.RegisterFileServiceServer(srv, f)
	go func() { _ = srv.Serve(lis) }()

	c, err := NewCSVKeeperClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		srv.Stop()
	})
	return c
}

func TestUpload_SendsMetadataAndToken(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f, "tok")

	res, err := c.Upload(context.Background(), "a.csv", "text/csv", []byte("h,v\nx,1\n"))
	require.NoError(t, err)
	assert.Equal(t, &UploadResult{ID: "id-1", DisplayName: "a.csv.enc", IV: "00"}, res)

	assert.Equal(t, []string{"tok"}, f.gotMD.Get(common.AccessTokenHeaderName))
	assert.Equal(t, []string{"a.csv"}, f.gotMD.Get(common.FileNameHeaderName))
	assert.Equal(t, []string{"text/csv"}, f.gotMD.Get(common.ContentTypeHeaderName))
	assert.Equal(t, []byte("h,v\nx,1\n"), f.gotData)
}

func TestPing_NoTokenHeaderWhenEmpty(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f, "")

	require.NoError(t, c.Ping(context.Background()))
	assert.Empty(t, f.gotMD.Get(common.AccessTokenHeaderName))
}

func TestDownload_ReadsHeaders(t *testing.T) {
	c := newTestClient(t, &fakeServer{}, "tok")

	d, err := c.Download(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, "a.csv.enc", d.FileName)
	assert.Equal(t, "text/csv", d.ContentType)
	assert.Equal(t, "h,v\nx,1\n", string(d.Data))
}

func TestList_ParsesItems(t *testing.T) {
	c := newTestClient(t, &fakeServer{}, "tok")

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 2025, items[0].CreatedAt.Year())
	assert.True(t, items[1].CreatedAt.IsZero())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrUnauthorized},
		{codes.Unavailable, ErrUnavailable},
		{codes.NotFound, ErrNotFound},
		{codes.InvalidArgument, ErrRejected},
		{codes.DataLoss, ErrDamaged},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			c := newTestClient(t, &fakeServer{err: status.Error(tt.code, "boom")}, "tok")
			_, err := c.Download(context.Background(), "x")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	c := newTestClient(t, &fakeServer{err: status.Error(codes.Internal, "boom")}, "tok")
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc error")
}
