package blocker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisBlockChannel = "kestrel:blocks:updates"
	redisOpTimeout    = 5 * time.Second
)

type blockUpdate struct {
	IP     string `json:"ip"`
	Status string `json:"status"`
}

type redisSync struct {
	mu     sync.RWMutex
	client *redis.Client
	ctx    context.Context
}

// EnableRedisSynchronization broadcasts block transitions to peer instances
// and follows theirs, so every instance's enforcement cache converges. The
// database stays authoritative; a missed message is corrected by the next
// LoadCache.
func (m *Manager) EnableRedisSynchronization(ctx context.Context, client *redis.Client) {
	if client == nil {
		log.Warn("Block synchronization disabled: redis client is nil")
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.peerSync.mu.Lock()
	if m.peerSync.client != nil {
		m.peerSync.mu.Unlock()
		return
	}
	m.peerSync.client = client
	m.peerSync.ctx = ctx
	m.peerSync.mu.Unlock()

	go m.subscribeToBlockUpdates(ctx, client)
}

func (m *Manager) subscribeToBlockUpdates(ctx context.Context, client *redis.Client) {
	pubsub := client.Subscribe(ctx, redisBlockChannel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) || ctx.Err() != nil {
				return
			}
			log.Error("Block sync: subscription error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		var update blockUpdate
		if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
			log.Error("Block sync: invalid payload", "error", err)
			continue
		}

		m.applyRemote(update.IP, update.Status)
	}
}

func (m *Manager) broadcast(ip, status string) {
	m.peerSync.mu.RLock()
	client := m.peerSync.client
	baseCtx := m.peerSync.ctx
	m.peerSync.mu.RUnlock()

	if client == nil {
		return
	}

	ctx := baseCtx
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	payload, err := json.Marshal(blockUpdate{IP: ip, Status: status})
	if err != nil {
		log.Error("Block sync: serialize update", "error", err)
		return
	}

	if err := client.Publish(opCtx, redisBlockChannel, payload).Err(); err != nil {
		log.Warn("Block sync: publish failed", "ip", ip, "error", err)
	}
}
