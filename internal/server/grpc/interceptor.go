package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	pb "github.com/dmitrijs2005/csvkeeper/internal/proto"
	"github.com/dmitrijs2005/csvkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

// OwnerIDKey holds the authenticated owner id in the request context.
const OwnerIDKey ctxKey = "ownerID"

var protectedMethods = map[string]struct{}{
	pb.FileService_Upload_FullMethodName:   {},
	pb.FileService_Download_FullMethodName: {},
	pb.FileService_List_FullMethodName:     {},
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if _, ok := protectedMethods[info.FullMethod]; ok {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		ownerID, err := auth.GetOwnerIDFromToken(accessToken, s.jwtSecret)
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, OwnerIDKey, ownerID)

	}

	return handler(ctx, req)
}

func ownerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(OwnerIDKey).(string)
	return v, ok && v != ""
}
