// Package source holds the backends collections fetch from, and the
// decorators that combine them.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"tomahawk/internal/job"
	"tomahawk/internal/store"
)

var ErrUnknownMethod = errors.New("unknown method")

// Chain tries sources in order and returns the first answer that carries
// data. A tree counts as empty when none of its values is a non-empty list.
type Chain struct {
	name    string
	sources []job.Source
	logger  *slog.Logger
}

// NewChain creates a Chain that queries sources in order.
func NewChain(name string, sources []job.Source, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{name: name, sources: sources, logger: logger}
}

func (c *Chain) Name() string { return c.name }

// Run asks each source in turn. It fails only when every source failed;
// if some answered but all answers were empty, the first of them is returned.
func (c *Chain) Run(ctx context.Context, method string, args job.Args) (job.Tree, error) {
	var (
		errs  []error
		empty job.Tree
	)
	for _, s := range c.sources {
		tree, err := s.Run(ctx, method, args)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("source failed", "source", s.Name(), "method", method, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if hasData(tree) {
			return tree, nil
		}
		if empty == nil {
			empty = tree
		}
	}
	if empty != nil {
		return empty, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return job.Tree{}, nil
}

func hasData(tree job.Tree) bool {
	for _, v := range tree {
		if list, ok := v.([]any); ok && len(list) > 0 {
			return true
		}
	}
	return false
}

// Cached records every successful answer of a source and replays the last
// one when the source later fails.
type Cached struct {
	src    job.Source
	store  *store.Store
	logger *slog.Logger
}

func NewCached(src job.Source, st *store.Store, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{src: src, store: st, logger: logger}
}

func (c *Cached) Name() string { return c.src.Name() }

func (c *Cached) Run(ctx context.Context, method string, args job.Args) (job.Tree, error) {
	key := ResponseKey(c.src.Name(), method, args)

	tree, err := c.src.Run(ctx, method, args)
	if err == nil {
		if perr := c.store.PutResponse(key, tree); perr != nil {
			c.logger.Warn("failed to store response", "key", key, "error", perr)
		}
		return tree, nil
	}
	if ctx.Err() != nil || errors.Is(err, ErrUnknownMethod) {
		return nil, err
	}

	resp, ok := c.store.GetResponse(key)
	if !ok {
		return nil, err
	}
	c.logger.Warn("source failed, serving stored response",
		"source", c.src.Name(), "method", method, "stored_at", resp.StoredAt, "error", err)
	return resp.Tree, nil
}

// ResponseKey builds the storage key of one (source, method, args) call.
// Argument order does not matter.
func ResponseKey(source, method string, args job.Args) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make([]string, len(keys))
	for i, k := range keys {
		q[i] = url.QueryEscape(k) + "=" + url.QueryEscape(strings.ToLower(args.String(k)))
	}
	key := source + "/" + method
	if len(q) > 0 {
		key += "?" + strings.Join(q, "&")
	}
	return key
}
