package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// sweep deletes one class of rows older than cutoff.
type sweep struct {
	name   string
	cutoff time.Time
	delete func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// runSweeps applies every sweep in one transaction and returns the rows
// removed per sweep name. Any failure rolls all of them back.
func runSweeps(ctx context.Context, db txRunner, sweeps ...sweep) (map[string]int64, error) {
	removed := make(map[string]int64, len(sweeps))
	err := db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, s := range sweeps {
			n, err := s.delete(ctx, tx, s.cutoff)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			removed[s.name] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// daysBefore returns the UTC instant the given number of days before now.
func daysBefore(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}

// dependency pairs a constructor argument with whether it was supplied.
type dependency struct {
	name    string
	present bool
}

func requireDependencies(job string, deps ...dependency) error {
	var missing []string
	for _, d := range deps {
		if !d.present {
			missing = append(missing, d.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.New(job + ": missing " + strings.Join(missing, ", "))
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
