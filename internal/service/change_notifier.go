package service

import (
	"encoding/json"
	"fmt"
	"sync"

	natsadapter "github.com/mototrade/trade-service/internal/adapter/nats"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
)

// SubscriptionHandle identifies a live registration with the notifier.
type SubscriptionHandle uint64

// ChangeNotifier consumes the trade change feed and pokes registered
// viewers when a trade they are party to is inserted, updated or deleted.
// Callbacks carry no payload: subscribers re-query for the authoritative
// state, which sidesteps ordering races between a delta and a re-fetch.
// Delivery is at least once per committed write; rapid changes may each
// fire, and correctness never depends on the count.
type ChangeNotifier struct {
	subscriber natsadapter.MessageSubscriber
	log        logger.Logger

	mu      sync.RWMutex
	subs    map[SubscriptionHandle]*tradeSubscription
	nextID  SubscriptionHandle
	feedSub natsadapter.Subscription
}

type tradeSubscription struct {
	accountID string
	callback  func()
}

func NewChangeNotifier(subscriber natsadapter.MessageSubscriber, log logger.Logger) *ChangeNotifier {
	return &ChangeNotifier{
		subscriber: subscriber,
		log:        log,
		subs:       make(map[SubscriptionHandle]*tradeSubscription),
	}
}

// Start attaches the notifier to the trade change feed.
func (n *ChangeNotifier) Start() error {
	sub, err := n.subscriber.Subscribe(repository.TradeChangeSubject, n.dispatch)
	if err != nil {
		return fmt.Errorf("failed to attach to trade change feed: %w", err)
	}

	n.mu.Lock()
	n.feedSub = sub
	n.mu.Unlock()

	n.log.Info("Change notifier attached to trade change feed")
	return nil
}

func (n *ChangeNotifier) Close() error {
	n.mu.Lock()
	sub := n.feedSub
	n.feedSub = nil
	n.mu.Unlock()

	if sub != nil {
		return sub.Unsubscribe()
	}
	return nil
}

// Subscribe registers a callback fired whenever a trade visible to
// accountID changes. The callback must not block for long; it runs on the
// feed consumer goroutine.
func (n *ChangeNotifier) Subscribe(accountID string, callback func()) SubscriptionHandle {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	handle := n.nextID
	n.subs[handle] = &tradeSubscription{accountID: accountID, callback: callback}
	return handle
}

func (n *ChangeNotifier) Unsubscribe(handle SubscriptionHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, handle)
}

func (n *ChangeNotifier) dispatch(data []byte) {
	var event repository.TradeChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		n.log.Warnf("Dropping malformed trade change event: %v", err)
		return
	}

	n.mu.RLock()
	var callbacks []func()
	for _, sub := range n.subs {
		if sub.accountID == event.BuyerID || sub.accountID == event.SellerID {
			callbacks = append(callbacks, sub.callback)
		}
	}
	n.mu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}
