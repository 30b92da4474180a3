package task

import (
	"context"
	"fmt"
	"time"
)

// Simulated workloads for the demo task kinds. Each advances progress in
// steps with a short pause between them, so polling observes intermediate
// states.

// EmailWork simulates delivering a message to recipient.
func EmailWork(recipient, subject string, stepDelay time.Duration) Func {
	return func(ctx context.Context, p *Progress) (any, error) {
		steps := []float64{0.1, 0.3, 0.6, 0.9}
		for _, step := range steps {
			if err := pause(ctx, stepDelay); err != nil {
				return nil, err
			}
			p.Set(step)
		}
		return map[string]string{
			"recipient": recipient,
			"subject":   subject,
			"status":    "sent",
		}, nil
	}
}

// ReportWork simulates assembling a report of the named kind.
func ReportWork(kind string, stepDelay time.Duration) Func {
	return func(ctx context.Context, p *Progress) (any, error) {
		phases := []string{"collect", "aggregate", "render"}
		for i, phase := range phases {
			if err := pause(ctx, stepDelay); err != nil {
				return nil, fmt.Errorf("%s: %w", phase, err)
			}
			p.Set(float64(i+1) / float64(len(phases)+1))
		}
		return map[string]string{
			"report": kind,
			"url":    "/reports/" + kind,
		}, nil
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
