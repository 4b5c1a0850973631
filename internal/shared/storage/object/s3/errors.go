package s3

import (
	"context"
	"errors"
	"fmt"
	"net"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"casedocs-backend/internal/shared/storage/object"
)

// classify translates an AWS SDK error into the store failure taxonomy.
// Callers above the store boundary never see raw SDK errors.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	var noSuchBucket *s3types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		return wrap(object.ErrNotFound, err)
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == 404:
			return wrap(object.ErrNotFound, err)
		case code == 401 || code == 403:
			return wrap(object.ErrAccessDenied, err)
		case code >= 500 || code == 429:
			return wrap(object.ErrTransient, err)
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return wrap(object.ErrNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return wrap(object.ErrAccessDenied, err)
		case "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeout", "Throttling", "ThrottlingException":
			return wrap(object.ErrTransient, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return wrap(object.ErrTransient, err)
	}

	// Unclassified faults are treated as service-side and retryable.
	return wrap(object.ErrTransient, err)
}

func wrap(kind, err error) error {
	return fmt.Errorf("%w: %v", kind, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, object.ErrNotFound)
}
