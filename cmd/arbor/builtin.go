package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/params"
)

// Builtins returns the demonstration actions the binary ships with.
// Together they exercise every engine surface: plain dispatch, secret
// handling, task queues, fan-out, and web routes.
func Builtins(engine *arbor.Engine, cfg *config.Config) []*domain.Action {
	return []*domain.Action{
		{
			Name:        "status",
			Description: "Report engine uptime, action count, and queue depths.",
			Web:         &domain.WebBinding{Method: "GET", Route: "/status"},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				queues := make(map[string]int64)
				for _, name := range engine.Registry().Queues() {
					depth, err := engine.Queue().Depth(ctx, name)
					if err != nil {
						return nil, err
					}
					queues[name] = depth
				}
				return map[string]any{
					"engine":     engine.Name(),
					"uptime_sec": int64(engine.Uptime().Seconds()),
					"actions":    engine.Registry().Len(),
					"queues":     queues,
				}, nil
			},
		},
		{
			Name:        "echo",
			Description: "Return the message unchanged.",
			Inputs: []domain.Input{
				{Name: "message", Required: true, Formatter: params.String},
			},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				return map[string]any{"message": p.String("message")}, nil
			},
		},
		{
			Name:        "secret-check",
			Description: "Accept a secret without ever echoing it back.",
			Inputs: []domain.Input{
				{Name: "password", Required: true, Secret: true, Validator: params.NonEmpty()},
			},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				return map[string]any{"ok": true, "length": len(p.String("password"))}, nil
			},
		},
		{
			Name:        "sleep",
			Description: "Block for the given duration, then report it.",
			Inputs: []domain.Input{
				{Name: "duration", Default: "1s", Formatter: params.Duration},
			},
			Task: &domain.TaskBinding{},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				d := p.Duration("duration")
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				return map[string]any{"slept": d.String()}, nil
			},
		},
		{
			Name:        "burst",
			Description: "Fan out N echo children and return the batch receipt.",
			Inputs: []domain.Input{
				{Name: "count", Default: "5", Formatter: params.Int, Validator: params.Range(1, 10000)},
				{Name: "message", Default: "ping", Formatter: params.String},
			},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				count := p.Int("count")
				sets := make([]map[string]string, count)
				for i := range sets {
					sets[i] = map[string]string{
						"message": fmt.Sprintf("%s %d", p.String("message"), i+1),
					}
				}
				receipt, err := c.FanOut(ctx, domain.FanOutRequest{
					Action:    "echo",
					InputSets: sets,
					BatchSize: cfg.FanOut.BatchSize,
					ResultTTL: cfg.FanOut.TTL.Std(),
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"fanout_id": receipt.ID, "total": receipt.Total}, nil
			},
		},
		{
			Name:        "fanout-status",
			Description: "Report the aggregate state of a fan-out batch.",
			Web:         &domain.WebBinding{Method: "GET", Route: "/fanouts/{id}"},
			Inputs: []domain.Input{
				{Name: "id", Required: true, Validator: params.NonEmpty()},
			},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				return c.FanOutStatus(ctx, p.String("id"))
			},
		},
	}
}
