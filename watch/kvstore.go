package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// KV bucket and key for rule persistence.
const (
	RulesBucket = "PRODSYNC_WATCH_RULES"
	rulesKey    = "rules"
)

// KVRuleStore keeps the rule list as a single JSON blob in a NATS KV
// bucket. A single Put replaces the whole list, so persistence is
// never partial.
type KVRuleStore struct {
	kv jetstream.KeyValue
}

// NewKVRuleStore creates (or binds to) the rules bucket.
func NewKVRuleStore(ctx context.Context, js jetstream.JetStream) (*KVRuleStore, error) {
	kv, err := js.KeyValue(ctx, RulesBucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      RulesBucket,
			Description: "prodsync watch rule persistence",
			History:     5,
		})
		if err != nil {
			return nil, fmt.Errorf("create rules bucket: %w", err)
		}
	}
	return &KVRuleStore{kv: kv}, nil
}

// Load reads the rule list. A missing key is an empty list.
func (s *KVRuleStore) Load(ctx context.Context) ([]Rule, error) {
	entry, err := s.kv.Get(ctx, rulesKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rules: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(entry.Value(), &rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	return rules, nil
}

// Save writes the full rule list.
func (s *KVRuleStore) Save(ctx context.Context, rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	if _, err := s.kv.Put(ctx, rulesKey, data); err != nil {
		return fmt.Errorf("put rules: %w", err)
	}
	return nil
}
