package ledger

import "time"

// SortOrder defines how entries are ordered when listing the ledger.
type SortOrder int

const (
	// SortNewestFirst orders entries by recording time descending.
	SortNewestFirst SortOrder = iota
	// SortOldestFirst orders entries by recording time ascending.
	SortOldestFirst
)

// ListOptions controls which entries are selected when querying a store.
type ListOptions struct {
	Limit    int
	PluginID string
	Actions  []Action
	Since    time.Time
	Order    SortOrder
}

func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if opts.Actions != nil {
		opts.Actions = normalizeActions(opts.Actions)
	}
	if opts.Order != SortOldestFirst {
		opts.Order = SortNewestFirst
	}
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of entries returned.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithPlugin keeps only entries about the plugin with the given ID.
func WithPlugin(id string) ListOption {
	return func(opts *ListOptions) {
		opts.PluginID = id
	}
}

// WithActions filters entries by action.
func WithActions(actions ...Action) ListOption {
	return func(opts *ListOptions) {
		opts.Actions = append(opts.Actions[:0], actions...)
	}
}

// WithSince keeps entries recorded at or after ts.
func WithSince(ts time.Time) ListOption {
	return func(opts *ListOptions) {
		opts.Since = ts
	}
}

// WithSortOrder changes the returned order of entries.
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

func buildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func normalizeActions(input []Action) []Action {
	seen := make(map[Action]struct{}, len(input))
	result := make([]Action, 0, len(input))
	for _, action := range input {
		if !IsValidAction(action) {
			continue
		}
		if _, ok := seen[action]; ok {
			continue
		}
		seen[action] = struct{}{}
		result = append(result, action)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func (opts ListOptions) matches(e Entry) bool {
	if opts.PluginID != "" && e.PluginID != opts.PluginID {
		return false
	}
	if !opts.Since.IsZero() && e.At.Before(opts.Since) {
		return false
	}
	if len(opts.Actions) == 0 {
		return true
	}
	for _, action := range opts.Actions {
		if e.Action == action {
			return true
		}
	}
	return false
}
