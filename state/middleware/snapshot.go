package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"
	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix prefixes the redis key holding the latest record of a stock.
	KeyPrefix = "stock:"
	// ChannelPrefix prefixes the redis channel a stock's records are published on.
	ChannelPrefix = "prices."
)

// Snapshot provides middleware that writes every changed record to redis and
// publishes it to subscribers of the stock's channel.
type Snapshot struct {
	client  redis.Cmdable
	timeout time.Duration
}

// NewSnapshot is the constructor for Snapshot.
func NewSnapshot(client redis.Cmdable) *Snapshot {
	return &Snapshot{client: client, timeout: 2 * time.Second}
}

// Publish implements stockboard.Middleware. Redis errors are logged, they
// never stop a commit.
func (s *Snapshot) Publish(args *stockboard.MWArgs) (changedData *data.State, stop bool, err error) {
	old := args.GetState()

	go func() {
		defer args.WG.Done()
		state := <-args.Committed
		if state.IsZero() {
			return
		}

		recs := changedRecords(old.Data, state.Data)
		if len(recs) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		pipe := s.client.Pipeline()
		for _, r := range recs {
			b, err := json.Marshal(r)
			if err != nil {
				glog.Errorf("problem marshalling stock %s for redis: %s", r.Symbol, err)
				continue
			}
			pipe.Set(ctx, KeyPrefix+r.Symbol, b, 0)
			pipe.Publish(ctx, ChannelPrefix+r.Symbol, b)
		}

		if _, err := pipe.Exec(ctx); err != nil {
			glog.Errorf("problem writing board snapshot to redis: %s", err)
		}
	}()
	return nil, false, nil
}
