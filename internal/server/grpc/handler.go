package grpc

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"github.com/dmitrijs2005/csvkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *GRPCServer) Upload(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	name := path.Base(strings.ReplaceAll(firstValue(md, common.FileNameHeaderName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, status.Error(codes.InvalidArgument, "missing file name")
	}

	res, err := s.files.Upload(ctx, services.UploadRequest{
		OwnerID:     ownerID,
		FileName:    name,
		ContentType: firstValue(md, common.ContentTypeHeaderName),
		Data:        req.GetValue(),
	})
	if err != nil {
		s.logger.Warn(ctx, "upload failed", "owner_id", ownerID, "file", name, "error", err)
		return nil, toStatus(err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"id":           res.ID,
		"display_name": res.DisplayName,
		"iv":           res.IV,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) Download(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	id := req.GetValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "missing file id")
	}

	d, err := s.files.Retrieve(ctx, id)
	if err != nil {
		s.logger.Warn(ctx, "download failed", "id", id, "error", err)
		return nil, toStatus(err)
	}
	defer d.Body.Close()

	// the whole body is read so authentication fails before anything is sent
	data, err := io.ReadAll(d.Body)
	if err != nil {
		s.logger.Error(ctx, "decryption failed", "id", id, "error", err)
		return nil, toStatus(err)
	}

	header := metadata.Pairs(
		common.ContentDispositionHeaderName, fmt.Sprintf("attachment; filename=%q", d.DisplayName),
		common.ContentTypeHeaderName, d.ContentType,
	)
	if err := grpc.SetHeader(ctx, header); err != nil {
		s.logger.Debug(ctx, "response header not set", "error", err)
	}

	return wrapperspb.Bytes(data), nil
}

func (s *GRPCServer) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	infos, err := s.files.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]any, 0, len(infos))
	for _, fi := range infos {
		items = append(items, map[string]any{
			"id":           fi.ID,
			"display_name": fi.DisplayName,
			"owner_id":     fi.OwnerID,
			"iv":           fi.IV,
			"created_at":   fi.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	out, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("OK"), nil
}
