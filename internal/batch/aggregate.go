package batch

import (
	"fmt"
	"strings"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// Summary is the running tally for a batch run. It is always produced,
// even when every task failed; partial failure is never reported as a
// top-level error.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Total     int `json:"total"`
}

// Images collects the produced images from a set of outcomes, preserving
// request order.
func Images(outcomes []domain.Outcome) []*domain.Image {
	images := make([]*domain.Image, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			images = append(images, o.Image)
		}
	}
	return images
}

// FirstError returns the first failed outcome's error, or nil if every
// outcome succeeded. Tasks record this as contextual detail even when
// they end in success.
func FirstError(outcomes []domain.Outcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// AggregateError collapses an all-failed outcome set into a single error
// built from the distinct underlying messages, so the first concrete
// cause stays visible instead of a generic failure. It returns nil when
// the set is empty or any outcome succeeded. When every failure is a
// cancellation, the aggregate is the cancellation sentinel itself so the
// run is reported as stopped, not failed.
func AggregateError(outcomes []domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	allStopped := true
	seen := make(map[string]struct{})
	var messages []string
	for _, o := range outcomes {
		if o.Err == nil {
			return nil
		}
		if !domain.IsStopped(o.Err) {
			allStopped = false
		}
		msg := o.Err.Error()
		if _, dup := seen[msg]; !dup {
			seen[msg] = struct{}{}
			messages = append(messages, msg)
		}
	}

	if allStopped {
		return domain.ErrStopped
	}
	return fmt.Errorf("all %d images failed: %s", len(outcomes), strings.Join(messages, "; "))
}
