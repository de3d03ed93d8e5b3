package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/provisia/warden/internal/limiter"
)

// PresetWatcher mirrors the preset documents under an etcd prefix into
// a limiter registry. Gateways run one so control-plane edits take
// effect without a restart.
type PresetWatcher struct {
	etcd     *clientv3.Client
	registry *limiter.Registry
	prefix   string
	logger   *slog.Logger
}

func NewPresetWatcher(etcd *clientv3.Client, registry *limiter.Registry, prefix string, logger *slog.Logger) *PresetWatcher {
	return &PresetWatcher{
		etcd:     etcd,
		registry: registry,
		prefix:   prefix,
		logger:   logger,
	}
}

// Run loads the current presets, then applies watch events until the
// context is cancelled. A deleted key restores the builtin preset.
func (w *PresetWatcher) Run(ctx context.Context) error {
	resp, err := w.etcd.Get(ctx, w.prefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range resp.Kvs {
		w.apply(string(kv.Key), kv.Value)
	}

	watch := w.etcd.Watch(ctx, w.prefix, clientv3.WithPrefix())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case wresp, ok := <-watch:
			if !ok {
				return nil
			}
			if err := wresp.Err(); err != nil {
				w.logger.Warn("Preset watch error", "error", err)
				continue
			}
			for _, event := range wresp.Events {
				key := string(event.Kv.Key)
				switch event.Type {
				case clientv3.EventTypePut:
					w.apply(key, event.Kv.Value)
				case clientv3.EventTypeDelete:
					name := w.presetName(key)
					w.registry.Reset(name)
					w.logger.Info("Preset override removed", "preset", name)
				}
			}
		}
	}
}

func (w *PresetWatcher) apply(key string, value []byte) {
	name := w.presetName(key)

	var doc PresetDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		w.logger.Warn("Failed to parse preset", "key", key, "error", err)
		return
	}

	cfg, err := doc.Config()
	if err != nil {
		w.logger.Warn("Rejecting preset with unknown strategy", "preset", name, "strategy", doc.Strategy)
		return
	}

	w.registry.Set(name, cfg)
	w.logger.Info("Preset applied",
		"preset", name,
		"strategy", doc.Strategy,
		"requests", doc.Requests,
		"window", doc.Window,
	)
}

func (w *PresetWatcher) presetName(key string) string {
	return strings.TrimPrefix(key, w.prefix)
}
