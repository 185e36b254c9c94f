package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors onto gRPC codes. Messages of integrity and
// store failures are not echoed to the caller.
func toStatus(err error) error {
	var (
		formatErr  *common.FormatError
		corruptErr *common.CorruptRecordError
		missingErr *common.BlobMissingError
		cryptoErr  *common.CryptoError
		storeErr   *common.StoreError
	)

	switch {
	case errors.As(err, &formatErr):
		return status.Error(codes.InvalidArgument, formatErr.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.As(err, &corruptErr), errors.As(err, &missingErr), errors.As(err, &cryptoErr):
		return status.Error(codes.DataLoss, "stored file is damaged")
	case errors.As(err, &storeErr):
		return status.Error(codes.Unavailable, "storage unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
