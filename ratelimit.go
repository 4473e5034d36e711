package vidset

import (
	"context"

	"github.com/juju/ratelimit"
)

// bucketLimiter adapts a token bucket to grab's RateLimiter interface so a
// download can be capped to a fixed number of bytes per second.
type bucketLimiter struct {
	bucket *ratelimit.Bucket
}

func newBucketLimiter(bytesPerSecond int64) *bucketLimiter {
	return &bucketLimiter{
		bucket: ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond),
	}
}

func (l *bucketLimiter) WaitN(ctx context.Context, n int) error {
	l.bucket.Wait(int64(n))
	return ctx.Err()
}
