// internal/state/prompt.go
package state

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/agentdeck/internal/types"
)

const (
	maxTitleLen = 200
	maxBodyLen  = 10000
)

// PromptCatalog is an in-memory registry of prompt templates. All mutations
// are immediately visible to subsequent reads. Writes are serialized by the
// catalog's mutex, so there is never more than one writer per prompt.
type PromptCatalog struct {
	mu      sync.RWMutex
	prompts map[types.PromptID]*types.Prompt
}

// NewPromptCatalog creates an empty catalog.
func NewPromptCatalog() *PromptCatalog {
	return &PromptCatalog{
		prompts: make(map[types.PromptID]*types.Prompt),
	}
}

// Seed loads the sample prompts the console ships with. Intended for first
// run of the daemon; tests construct empty catalogs.
func (c *PromptCatalog) Seed(ctx context.Context) error {
	samples := []struct {
		title string
		body  string
		tags  []string
	}{
		{
			title: "Customer Support Assistant",
			body:  "You are a helpful customer support assistant. Always be polite and professional.",
			tags:  []string{"support", "customer-service"},
		},
		{
			title: "Code Review Expert",
			body:  "Review the following code and provide constructive feedback on improvements.",
			tags:  []string{"code", "review", "development"},
		},
		{
			title: "Technical Writer",
			body:  "Write clear and concise technical documentation.",
			tags:  []string{"documentation", "technical-writing"},
		},
	}

	for _, s := range samples {
		if _, err := c.Create(ctx, s.title, s.body, s.tags); err != nil {
			return fmt.Errorf("seed prompt %q: %w", s.title, err)
		}
	}
	return nil
}

// List returns all prompts ordered by UpdatedAt descending.
func (c *PromptCatalog) List(_ context.Context) ([]*types.Prompt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sorted(), nil
}

// sorted returns copies of all prompts, newest update first. Caller must
// hold at least a read lock.
func (c *PromptCatalog) sorted() []*types.Prompt {
	prompts := make([]*types.Prompt, 0, len(c.prompts))
	for _, p := range c.prompts {
		prompts = append(prompts, clonePrompt(p))
	}
	sort.SliceStable(prompts, func(i, j int) bool {
		return prompts[i].UpdatedAt.After(prompts[j].UpdatedAt)
	})
	return prompts
}

// Get returns the prompt with the given id.
func (c *PromptCatalog) Get(_ context.Context, id types.PromptID) (*types.Prompt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	return clonePrompt(p), nil
}

// Search filters the catalog: an empty query matches everything, otherwise
// the query must be a case-insensitive substring of the title or body. When
// tags are given, at least one must be present on the prompt. Order matches
// List.
func (c *PromptCatalog) Search(_ context.Context, query string, tags []string) ([]*types.Prompt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*types.Prompt
	for _, p := range c.sorted() {
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Body), q) {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(p.Tags, tags) {
			continue
		}
		out = append(out, p)
	}
	if out == nil {
		out = []*types.Prompt{}
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Create validates the input and registers a new prompt with version 1.
func (c *PromptCatalog) Create(_ context.Context, title, body string, tags []string) (*types.Prompt, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	p := &types.Prompt{
		ID:    types.NewPromptID(),
		Title: title,
		Body:  body,
		Tags:  tags,
		Versions: []types.PromptVersion{
			{Version: 1, Body: body, UpdatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.prompts[p.ID] = p
	return clonePrompt(p), nil
}

// Update merges the provided fields into the prompt. A body change appends a
// new version; title/tag-only updates still bump UpdatedAt but leave the
// version history alone.
func (c *PromptCatalog) Update(_ context.Context, id types.PromptID, update types.PromptUpdate) (*types.Prompt, error) {
	if update.Title != nil {
		if err := validateTitle(*update.Title); err != nil {
			return nil, err
		}
	}
	if update.Body != nil {
		if err := validateBody(*update.Body); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}

	now := time.Now()
	if update.Title != nil {
		p.Title = *update.Title
	}
	if update.Tags != nil {
		p.Tags = append([]string{}, (*update.Tags)...)
	}
	if update.Body != nil && *update.Body != p.Body {
		p.Body = *update.Body
		p.Versions = append(p.Versions, types.PromptVersion{
			Version:   len(p.Versions) + 1,
			Body:      p.Body,
			UpdatedAt: now,
		})
	}
	p.UpdatedAt = now
	return clonePrompt(p), nil
}

// Delete removes the prompt if present and reports whether anything was
// removed. Deleting an absent id is a no-op.
func (c *PromptCatalog) Delete(_ context.Context, id types.PromptID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.prompts[id]; !ok {
		return false, nil
	}
	delete(c.prompts, id)
	return true, nil
}

func validateTitle(title string) error {
	if len(title) < 1 || len(title) > maxTitleLen {
		return validationError("title", fmt.Sprintf("length must be 1-%d", maxTitleLen))
	}
	return nil
}

func validateBody(body string) error {
	if len(body) < 1 || len(body) > maxBodyLen {
		return validationError("body", fmt.Sprintf("length must be 1-%d", maxBodyLen))
	}
	return nil
}

func clonePrompt(p *types.Prompt) *types.Prompt {
	out := *p
	out.Tags = append([]string{}, p.Tags...)
	out.Versions = append([]types.PromptVersion{}, p.Versions...)
	return &out
}
